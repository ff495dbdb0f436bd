// Package archive keeps analysis reports of studies in Azure Blob Storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.uber.org/zap"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// BlobStorageClient stores and fetches JSON blobs.
type BlobStorageClient interface {
	Put(ctx context.Context, blobPath string, data []byte, metadata map[string]string) (string, error)
	Get(ctx context.Context, reference string) ([]byte, error)
}

// AzureBlobClient implements BlobStorageClient with a shared-key azblob client. Plain http
// endpoints, such as a local Azurite, are allowed.
type AzureBlobClient struct {
	client        *azblob.Client
	serviceURL    string
	containerName string
	logger        *zap.Logger

	containerMu   sync.Mutex
	containerInit bool
}

// NewAzureBlobClient creates a client from a storage connection string.
func NewAzureBlobClient(connectionString, containerName string, logger *zap.Logger) (*AzureBlobClient, error) {
	if connectionString == "" {
		return nil, sdkerrors.NewInvalidArgumentError("blob connection string is required", "EMPTY_CONNECTION_STRING")
	}
	if containerName == "" {
		return nil, sdkerrors.NewInvalidArgumentError("blob container name is required", "EMPTY_CONTAINER")
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	params := parseConnectionString(connectionString)
	accountName, accountKey := params["AccountName"], params["AccountKey"]
	if accountName == "" || accountKey == "" {
		return nil, sdkerrors.NewInvalidArgumentError(
			"account name and key are required in the blob connection string", "INVALID_CONNECTION_STRING")
	}
	serviceURL := params["BlobEndpoint"]
	if serviceURL == "" {
		protocol := params["DefaultEndpointsProtocol"]
		if protocol == "" {
			protocol = "https"
		}
		suffix := params["EndpointSuffix"]
		if suffix == "" {
			suffix = "core.windows.net"
		}
		serviceURL = fmt.Sprintf("%s://%s.blob.%s", protocol, accountName, suffix)
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential for account '%s': %w", accountName, err)
	}

	var clientOpts *azblob.ClientOptions
	if strings.HasPrefix(strings.ToLower(serviceURL), "http://") {
		clientOpts = &azblob.ClientOptions{
			ClientOptions: azcore.ClientOptions{InsecureAllowCredentialWithHTTP: true},
		}
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client for '%s': %w", serviceURL, err)
	}

	return &AzureBlobClient{
		client:        client,
		serviceURL:    strings.TrimRight(serviceURL, "/"),
		containerName: containerName,
		logger:        logger,
	}, nil
}

// Put uploads data as a JSON block blob and returns its URL.
func (a *AzureBlobClient) Put(ctx context.Context, blobPath string, data []byte, metadata map[string]string) (string, error) {
	if err := a.ensureContainer(ctx); err != nil {
		return "", err
	}

	meta := make(map[string]*string, len(metadata))
	for k, v := range metadata {
		meta[k] = to.Ptr(v)
	}

	blobClient := a.client.ServiceClient().NewContainerClient(a.containerName).NewBlockBlobClient(blobPath)
	_, err := blobClient.UploadBuffer(ctx, data, &azblob.UploadBufferOptions{
		Metadata:    meta,
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr("application/json")},
	})
	if err != nil {
		a.logger.Error("Failed to upload blob",
			zap.String("blob_path", blobPath),
			zap.Int("size", len(data)),
			zap.Error(err))
		return "", fmt.Errorf("upload of blob '%s' failed: %w", blobPath, err)
	}

	a.logger.Debug("Uploaded blob",
		zap.String("blob_path", blobPath),
		zap.Int("size_bytes", len(data)))
	return blobClient.URL(), nil
}

// Get downloads a blob by URL or container-relative path.
func (a *AzureBlobClient) Get(ctx context.Context, reference string) ([]byte, error) {
	blobPath, err := blobPathOf(reference, a.serviceURL, a.containerName)
	if err != nil {
		return nil, err
	}

	blobClient := a.client.ServiceClient().NewContainerClient(a.containerName).NewBlobClient(blobPath)
	resp, err := blobClient.DownloadStream(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, sdkerrors.NewError(sdkerrors.ErrNotFound, "BLOB_NOT_FOUND",
				fmt.Sprintf("blob '%s' not found", blobPath), err)
		}
		return nil, fmt.Errorf("download of blob '%s' failed: %w", blobPath, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob '%s': %w", blobPath, err)
	}
	return data, nil
}

func (a *AzureBlobClient) ensureContainer(ctx context.Context) error {
	a.containerMu.Lock()
	defer a.containerMu.Unlock()
	if a.containerInit {
		return nil
	}

	_, err := a.client.CreateContainer(ctx, a.containerName, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !errors.As(err, &respErr) || respErr.ErrorCode != string(bloberror.ContainerAlreadyExists) {
			return fmt.Errorf("failed to ensure container '%s': %w", a.containerName, err)
		}
	}
	a.containerInit = true
	return nil
}

func parseConnectionString(connectionString string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(connectionString, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || key == "" {
			continue
		}
		params[key] = value
	}
	return params
}

// blobPathOf reduces a blob URL or path to the path inside the container.
func blobPathOf(reference, serviceURL, containerName string) (string, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return "", sdkerrors.NewInvalidArgumentError("blob reference is empty", "EMPTY_BLOB_REFERENCE")
	}

	if strings.HasPrefix(strings.ToLower(ref), strings.ToLower(serviceURL)) {
		ref = ref[len(serviceURL):]
	}
	if u, err := url.Parse(ref); err == nil {
		ref = u.Path
	}
	if decoded, err := url.PathUnescape(ref); err == nil {
		ref = decoded
	}

	ref = strings.TrimPrefix(ref, "/")
	ref = strings.TrimPrefix(ref, containerName+"/")
	if ref == "" {
		return "", sdkerrors.NewInvalidArgumentError(
			fmt.Sprintf("blob reference '%s' has no path", reference), "EMPTY_BLOB_PATH")
	}
	return ref, nil
}
