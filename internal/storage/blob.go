package storage

import "context"

// BlobStore is the contract the image pipeline uploads through. Upload
// returns a retrievable URL; Delete accepts that URL back as the reference.
type BlobStore interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
}
