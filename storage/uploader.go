package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var ErrUploadsDisabled = errors.New("file uploads are not configured")

type UploadResult struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	ETag     string `json:"etag,omitempty"`
}

// FileUploader stores match screenshots and dispute evidence.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	GetPublicURL(key string) string
}

// MatchFileKey builds a collision-free object key for a file attached to a match, e.g.
// tournaments/3/matches/17/2f1c...-final-score.png
func MatchFileKey(tournamentID, matchID int, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	base := slug.Make(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("tournaments/%d/matches/%d/%s-%s%s", tournamentID, matchID, uuid.NewString(), base, ext)
}

type disabledUploader struct{}

// NewDisabledUploader is used when no object storage is configured; every upload fails.
func NewDisabledUploader() FileUploader {
	return disabledUploader{}
}

func (disabledUploader) Upload(context.Context, string, string, io.Reader) (*UploadResult, error) {
	return nil, ErrUploadsDisabled
}

func (disabledUploader) GetPublicURL(string) string {
	return ""
}
