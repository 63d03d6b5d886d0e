// Package storage archives captured stills
package storage

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// Archive stores an object and returns its URL
type Archive interface {
	Store(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// AzureOptions configures the blob archive
type AzureOptions struct {
	AccountName string
	AccountKey  string
	Container   string
	// ServiceURL overrides the public endpoint, e.g. for Azurite
	ServiceURL string
}

type azureArchive struct {
	client    *azblob.Client
	container string

	mu      sync.Mutex
	ensured bool
}

// NewAzureArchive creates an archive backed by one blob container
func NewAzureArchive(opts AzureOptions) (Archive, error) {
	if opts.Container == "" {
		return nil, fmt.Errorf("azure container name is required")
	}

	credential, err := azblob.NewSharedKeyCredential(opts.AccountName, opts.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	serviceURL := opts.ServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", opts.AccountName)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure client: %w", err)
	}

	return &azureArchive{client: client, container: opts.Container}, nil
}

// Store uploads data as a block blob, creating the container on first use
func (a *azureArchive) Store(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := a.ensureContainer(ctx); err != nil {
		return "", err
	}

	_, err := a.client.UploadBuffer(ctx, a.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}

	blobURL, err := url.JoinPath(a.client.URL(), a.container, name)
	if err != nil {
		return "", fmt.Errorf("invalid blob URL: %w", err)
	}
	return blobURL, nil
}

// ensureContainer creates the container until one attempt succeeds; a failed
// attempt is retried on the next Store
func (a *azureArchive) ensureContainer(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ensured {
		return nil
	}

	_, err := a.client.CreateContainer(ctx, a.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", a.container, err)
	}
	a.ensured = true
	return nil
}

type noopArchive struct{}

// NewNoopArchive creates an archive that discards everything
func NewNoopArchive() Archive {
	return noopArchive{}
}

func (noopArchive) Store(context.Context, string, []byte, string) (string, error) {
	return "", nil
}

// MemoryArchive keeps objects in memory. It backs the CLI and tests.
type MemoryArchive struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

// NewMemoryArchive creates an empty in-memory archive
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// Store implements Archive; the returned URL uses the mem:// scheme
func (m *MemoryArchive) Store(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = append([]byte(nil), data...)
	m.types[name] = contentType
	return "mem://" + name, nil
}

// Get returns a stored object and its content type
func (m *MemoryArchive) Get(name string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[name]
	return data, m.types[name], ok
}

// Len returns the number of stored objects
func (m *MemoryArchive) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
