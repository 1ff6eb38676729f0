package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"aida/internal/config"
	"aida/internal/domain"
)

// AzureStore keeps uploads in an Azure Blob Storage container.
type AzureStore struct {
	client    *azblob.Client
	container string
	prefix    string
}

var _ domain.BlobStore = (*AzureStore)(nil)

// NewAzureStore creates a store authenticated with the account key.
func NewAzureStore(cfg config.AzureConfig) (*AzureStore, error) {
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := cfg.Endpoint
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureStore{client: client, container: cfg.Container, prefix: cfg.Prefix}, nil
}

// Put streams r as a block blob guarded by If-None-Match: *. A taken name
// is retried with the next candidate, replaying the bytes already sent.
func (s *AzureStore) Put(ctx context.Context, names domain.NameFunc, r io.Reader) (string, int64, error) {
	body := &replayReader{src: r}
	var size int64
	name, err := publish(names, func(name string) error {
		key := objectKey(s.prefix, name)
		cr := &countingReader{r: body.next()}
		_, err := s.client.UploadStream(ctx, s.container, key, cr, &azblob.UploadStreamOptions{
			AccessConditions: &blob.AccessConditions{
				ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: to.Ptr(azcore.ETagAny)},
			},
		})
		if err != nil {
			if bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet) {
				return domain.ErrBlobExists
			}
			return fmt.Errorf("put azure %s/%s: %w", s.container, key, err)
		}
		size = cr.n
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return objectKey(s.prefix, name), size, nil
}

// Open streams the blob.
func (s *AzureStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, location, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, notFound(location)
		}
		return nil, fmt.Errorf("get azure %s/%s: %w", s.container, location, err)
	}
	return resp.Body, nil
}

// Delete removes the blob. Missing blobs are ignored.
func (s *AzureStore) Delete(ctx context.Context, location string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, location, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("delete azure %s/%s: %w", s.container, location, err)
	}
	return nil
}

// List pages through every blob under the prefix.
func (s *AzureStore) List(ctx context.Context) ([]domain.BlobInfo, error) {
	opts := &azblob.ListBlobsFlatOptions{}
	if p := strings.Trim(s.prefix, "/"); p != "" {
		opts.Prefix = to.Ptr(p + "/")
	}
	var out []domain.BlobInfo
	pager := s.client.NewListBlobsFlatPager(s.container, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list azure %s: %w", s.container, err)
		}
		for _, item := range page.Segment.BlobItems {
			info := domain.BlobInfo{Location: deref(item.Name)}
			if item.Properties != nil {
				info.Size = deref(item.Properties.ContentLength)
				info.ModTime = deref(item.Properties.LastModified)
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
