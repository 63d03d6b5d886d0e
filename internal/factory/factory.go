package factory

import (
	"fmt"

	"glow-capture/internal/capture"
	"glow-capture/internal/detector"
	"glow-capture/internal/storage"
)

// ArchiveType represents the backends captured stills can be archived to
type ArchiveType string

const (
	// NoArchive discards stills after analysis
	NoArchive ArchiveType = "none"
	// MemoryArchive keeps stills in process memory
	MemoryArchive ArchiveType = "memory"
	// AzureArchive uploads stills to Azure blob storage
	AzureArchive ArchiveType = "azure"
)

// DetectorFactory creates one landmark detector per capture session
type DetectorFactory interface {
	CreateDetector() (capture.Detector, error)
	Kind() detector.Kind
}

// ArchiveFactory creates archive implementations
type ArchiveFactory interface {
	CreateArchive(archiveType ArchiveType) (storage.Archive, error)
}

// detectorFactory implements DetectorFactory
type detectorFactory struct {
	kind detector.Kind
	pigo detector.PigoOptions
}

// NewDetectorFactory creates a detector factory for one backend kind
func NewDetectorFactory(kind detector.Kind, pigoOpts detector.PigoOptions) DetectorFactory {
	return &detectorFactory{kind: kind, pigo: pigoOpts}
}

// CreateDetector creates an uninitialized detector; Source.Start loads it
func (f *detectorFactory) CreateDetector() (capture.Detector, error) {
	switch f.kind {
	case detector.KindPigo:
		return detector.NewPigoDetector(f.pigo), nil
	case detector.KindClient:
		return detector.NewClientDetector(), nil
	default:
		return nil, fmt.Errorf("unsupported detector type: %s", f.kind)
	}
}

// Kind returns the backend this factory builds
func (f *detectorFactory) Kind() detector.Kind {
	return f.kind
}

// archiveFactory implements ArchiveFactory
type archiveFactory struct {
	azure storage.AzureOptions
}

// NewArchiveFactory creates a new archive factory
func NewArchiveFactory(azure storage.AzureOptions) ArchiveFactory {
	return &archiveFactory{azure: azure}
}

// CreateArchive creates an archive based on the specified type
func (f *archiveFactory) CreateArchive(archiveType ArchiveType) (storage.Archive, error) {
	switch archiveType {
	case NoArchive, "":
		return storage.NewNoopArchive(), nil
	case MemoryArchive:
		return storage.NewMemoryArchive(), nil
	case AzureArchive:
		return storage.NewAzureArchive(f.azure)
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", archiveType)
	}
}
