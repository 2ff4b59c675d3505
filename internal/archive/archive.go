// Package archive copies folder stores to S3-compatible object storage.
package archive

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// EncryptedExt is added to object keys written through age.
const EncryptedExt = ".age"

// Settings locate the bucket.
type Settings struct {
	Endpoint string
	Region   string
	Bucket   string
	Key      string
	Secret   string
	Prefix   string
	// Recipients are age public keys. When set, every object is encrypted.
	Recipients []string
}

type Option func(*Archiver)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Archiver) {
		a.logger = logger
	}
}

// WithUploader replaces the S3 uploader built from Settings.
func WithUploader(uploader s3manageriface.UploaderAPI) Option {
	return func(a *Archiver) {
		a.uploader = uploader
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Archiver) {
		a.now = now
	}
}

type Archiver struct {
	settings   Settings
	uploader   s3manageriface.UploaderAPI
	recipients []age.Recipient
	logger     *slog.Logger
	now        func() time.Time
}

// Manifest describes one snapshot. It is uploaded last, so a snapshot
// without a manifest is incomplete.
type Manifest struct {
	Snapshot  string           `json:"snapshot"`
	CreatedAt time.Time        `json:"created_at"`
	Encrypted bool             `json:"encrypted"`
	Folders   []FolderManifest `json:"folders"`
}

type FolderManifest struct {
	Folder      string   `json:"folder"`
	UIDValidity uint32   `json:"uid_validity"`
	Messages    int      `json:"messages"`
	Objects     []string `json:"objects"`
}

func New(settings Settings, opts ...Option) (*Archiver, error) {
	if strings.TrimSpace(settings.Bucket) == "" {
		return nil, errors.New("archive bucket is not set")
	}
	a := &Archiver{
		settings: settings,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if len(settings.Recipients) > 0 {
		recipients, err := age.ParseRecipients(strings.NewReader(strings.Join(settings.Recipients, "\n")))
		if err != nil {
			return nil, errors.Wrap(err, "parsing age recipients")
		}
		a.recipients = recipients
	}

	if a.uploader == nil {
		cfg := aws.NewConfig().
			WithRegion(settings.Region).
			WithS3ForcePathStyle(true)
		if settings.Endpoint != "" {
			cfg = cfg.WithEndpoint(settings.Endpoint)
		}
		if settings.Key != "" {
			cfg = cfg.WithCredentials(credentials.NewStaticCredentials(settings.Key, settings.Secret, ""))
		}
		sess, err := session.NewSession(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "creating S3 session")
		}
		a.uploader = s3manager.NewUploader(sess)
	}
	return a, nil
}

// Archive uploads the stores of folders under dir as one snapshot and
// returns its manifest. Stores that fail the integrity check are not
// uploaded and fail the snapshot.
func (a *Archiver) Archive(ctx context.Context, dir string, folders []string) (Manifest, error) {
	created := a.now().UTC()
	manifest := Manifest{
		Snapshot:  created.Format("20060102T150405Z") + "-" + uuid.NewString()[:8],
		CreatedAt: created,
		Encrypted: len(a.recipients) > 0,
	}
	logger := a.logger.With("snapshot", manifest.Snapshot, "bucket", a.settings.Bucket)

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return manifest, err
		}
		st := store.Open(dir, folder, store.WithLogger(a.logger))
		if err := st.CheckIntegrity(); err != nil {
			return manifest, errors.Wrapf(err, "archiving %s", folder)
		}
		validity, _ := st.UIDValidity()
		fm := FolderManifest{Folder: folder, UIDValidity: validity, Messages: st.Len()}
		for _, file := range []string{st.IndexPath(), st.LogPath()} {
			key := a.key(manifest.Snapshot, folder+path.Ext(file))
			if err := a.uploadFile(ctx, key, file); err != nil {
				return manifest, err
			}
			fm.Objects = append(fm.Objects, key)
		}
		logger.Info("folder archived", "folder", folder, "messages", fm.Messages)
		manifest.Folders = append(manifest.Folders, fm)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return manifest, errors.Wrap(err, "encoding manifest")
	}
	if err := a.upload(ctx, a.objectKey(manifest.Snapshot, "manifest.json"), strings.NewReader(string(data)), false); err != nil {
		return manifest, err
	}
	logger.Info("snapshot archived", "folders", len(manifest.Folders))
	return manifest, nil
}

func (a *Archiver) key(snapshot, name string) string {
	key := a.objectKey(snapshot, name)
	if len(a.recipients) > 0 {
		key += EncryptedExt
	}
	return key
}

func (a *Archiver) objectKey(snapshot, name string) string {
	return path.Join(strings.Trim(a.settings.Prefix, "/"), snapshot, name)
}

func (a *Archiver) uploadFile(ctx context.Context, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.Wrapf(err, "opening %s", file)
	}
	defer f.Close()
	return a.upload(ctx, key, f, len(a.recipients) > 0)
}

func (a *Archiver) upload(ctx context.Context, key string, body io.Reader, encrypt bool) error {
	if encrypt {
		pr := a.encrypt(body)
		defer pr.Close()
		body = pr
	}
	_, err := a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(a.settings.Bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	return errors.Wrapf(err, "uploading %s", key)
}

// encrypt streams body through age. Closing the returned reader stops the
// encoder.
func (a *Archiver) encrypt(body io.Reader) *io.PipeReader {
	pr, pw := io.Pipe()
	go func() {
		w, err := age.Encrypt(pw, a.recipients...)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(w, body); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(w.Close())
	}()
	return pr
}
