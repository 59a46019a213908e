package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"plantledger/internal/blob"
	"plantledger/internal/logger"
	"plantledger/pkg/domain"
)

// ErrNoBlobStore is returned by image operations on a ledger built without
// WithBlobStore.
var ErrNoBlobStore = errors.New("ledger has no blob store configured")

func parseImageOwner(kind domain.ImageOwner) (domain.ImageOwner, error) {
	switch kind {
	case domain.ImageOwnerCollection, domain.ImageOwnerSeedBatch, domain.ImageOwnerGermination, domain.ImageOwnerCultivation:
		return kind, nil
	}
	return "", domain.ValidationError{Field: "owner_kind", Reason: "unknown owner kind " + string(kind)}
}

func ownerNotFound(kind domain.ImageOwner, id string) error {
	entity := map[domain.ImageOwner]domain.EntityType{
		domain.ImageOwnerCollection:  domain.EntityCollection,
		domain.ImageOwnerSeedBatch:   domain.EntitySeedBatch,
		domain.ImageOwnerGermination: domain.EntityGerminationRecord,
		domain.ImageOwnerCultivation: domain.EntityCultivationRecord,
	}[kind]
	return domain.NotFoundError{Entity: entity, ID: id}
}

// AttachImage stores an image file and links it to a ledger record. The owner
// is checked before the file is written; if the record cannot be committed
// the file is removed again.
func (l *Ledger) AttachImage(ctx context.Context, kind domain.ImageOwner, ownerID, fileName, contentType string, r io.Reader, description string) (domain.Image, error) {
	if l.opts.blobs == nil {
		return domain.Image{}, ErrNoBlobStore
	}
	kind, err := parseImageOwner(kind)
	if err != nil {
		return domain.Image{}, err
	}
	if strings.TrimSpace(fileName) == "" {
		return domain.Image{}, domain.ValidationError{Field: "file_name", Reason: "required"}
	}
	if err := l.view(ctx, func(v domain.TransactionView) error {
		if !imageOwnerExists(v, kind, ownerID) {
			return ownerNotFound(kind, ownerID)
		}
		return nil
	}); err != nil {
		return domain.Image{}, err
	}

	key := blob.ImageKey(string(kind), ownerID, fileName)
	info, err := l.opts.blobs.Put(ctx, key, r, blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"owner_kind": string(kind), "owner_id": ownerID},
	})
	if err != nil {
		return domain.Image{}, fmt.Errorf("store image %s: %w", fileName, err)
	}

	var created domain.Image
	err = l.run(ctx, "attach_image", func(tx domain.Transaction) error {
		if !imageOwnerExists(tx.Snapshot(), kind, ownerID) {
			return ownerNotFound(kind, ownerID)
		}
		var err error
		created, err = tx.CreateImage(domain.Image{
			OwnerKind:   kind,
			OwnerID:     ownerID,
			BlobKey:     key,
			FileName:    fileName,
			ContentType: contentType,
			Size:        info.Size,
			Description: description,
			UploadDate:  l.today(),
		})
		return err
	})
	if err != nil {
		l.removeBlob(ctx, key)
		return domain.Image{}, err
	}
	return created, nil
}

// UpdateImageDescription edits the caption of an image.
func (l *Ledger) UpdateImageDescription(ctx context.Context, imageID, description string) (domain.Image, error) {
	var updated domain.Image
	err := l.run(ctx, "update_image", func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateImage(imageID, func(img *domain.Image) error {
			img.Description = description
			return nil
		})
		return err
	})
	return updated, err
}

// DeleteImage removes an image record and then its file. A file that cannot
// be removed is logged, not reported.
func (l *Ledger) DeleteImage(ctx context.Context, imageID string) error {
	var removed domain.Image
	err := l.run(ctx, "delete_image", func(tx domain.Transaction) error {
		img, ok := tx.Snapshot().FindImage(imageID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityImage, ID: imageID}
		}
		removed = img
		return tx.DeleteImage(imageID)
	})
	if err != nil {
		return err
	}
	if l.opts.blobs != nil {
		l.removeBlob(ctx, removed.BlobKey)
	}
	return nil
}

func (l *Ledger) removeBlob(ctx context.Context, key string) {
	if _, err := l.opts.blobs.Delete(ctx, key); err != nil {
		l.log.WithContext(ctx).Warn("failed to remove image file",
			logger.String("key", key), logger.Error(err))
	}
}

// ListImages returns the images attached to a record, oldest first.
func (l *Ledger) ListImages(ctx context.Context, kind domain.ImageOwner, ownerID string) ([]domain.Image, error) {
	kind, err := parseImageOwner(kind)
	if err != nil {
		return nil, err
	}
	var out []domain.Image
	err = l.view(ctx, func(v domain.TransactionView) error {
		if !imageOwnerExists(v, kind, ownerID) {
			return ownerNotFound(kind, ownerID)
		}
		out = v.ImagesFor(kind, ownerID)
		return nil
	})
	return out, err
}

// OpenImage returns the image record and a reader over its file. The caller
// closes the reader.
func (l *Ledger) OpenImage(ctx context.Context, imageID string) (domain.Image, io.ReadCloser, error) {
	if l.opts.blobs == nil {
		return domain.Image{}, nil, ErrNoBlobStore
	}
	var img domain.Image
	if err := l.view(ctx, func(v domain.TransactionView) error {
		found, ok := v.FindImage(imageID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityImage, ID: imageID}
		}
		img = found
		return nil
	}); err != nil {
		return domain.Image{}, nil, err
	}
	_, rc, err := l.opts.blobs.Get(ctx, img.BlobKey)
	if err != nil {
		return domain.Image{}, nil, fmt.Errorf("open image %s: %w", img.ID, err)
	}
	return img, rc, nil
}
