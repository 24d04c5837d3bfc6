package intake

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeman-md/funcify/internal/domain/imagetask"
	"github.com/Freeman-md/funcify/internal/domain/product"
	"github.com/Freeman-md/funcify/internal/fault"
)

// mockProductRepo records calls and returns canned results.
type mockProductRepo struct {
	createCalls  int
	replaceCalls int
	getCalls     int
	lastProduct  *product.Product
	lastGetID    string
	lastGetPK    string
	err          error
}

func (m *mockProductRepo) Create(_ context.Context, p *product.Product) (*product.Product, error) {
	m.createCalls++
	m.lastProduct = p
	if m.err != nil {
		return nil, m.err
	}
	return p, nil
}

func (m *mockProductRepo) Get(_ context.Context, id, partitionKey string) (*product.Product, error) {
	m.getCalls++
	m.lastGetID = id
	m.lastGetPK = partitionKey
	if m.err != nil {
		return nil, m.err
	}
	return &product.Product{ID: id, Name: "stored", Price: decimal.NewFromInt(1), Category: partitionKey}, nil
}

func (m *mockProductRepo) Replace(_ context.Context, p *product.Product) (*product.Product, error) {
	m.replaceCalls++
	m.lastProduct = p
	if m.err != nil {
		return nil, m.err
	}
	return p, nil
}

func (m *mockProductRepo) Patch(context.Context, string, string, product.Patch) (*product.Product, error) {
	return nil, nil
}

// mockBlobStore records bucket and upload activity.
type mockBlobStore struct {
	ensuredBuckets []string
	uploads        []string
	uploadErr      error
}

func (m *mockBlobStore) EnsureBucket(_ context.Context, bucket string) error {
	m.ensuredBuckets = append(m.ensuredBuckets, bucket)
	return nil
}

func (m *mockBlobStore) Upload(_ context.Context, bucket, name string, _ io.Reader, _ int64, _ string) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	m.uploads = append(m.uploads, bucket+"/"+name)
	return "http://blob/" + bucket + "/" + name, nil
}

func (m *mockBlobStore) Download(context.Context, string, string) (string, error) {
	return "", fault.NotFound("not implemented")
}

func (m *mockBlobStore) Remove(context.Context, string, string) error { return nil }

// mockQueue records sent messages.
type mockQueue struct {
	messages []string
	err      error
}

func (m *mockQueue) Send(_ context.Context, message string) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, message)
	return nil
}

func newTestService() (*Service, *mockProductRepo, *mockBlobStore, *mockQueue) {
	repo := &mockProductRepo{}
	blobs := &mockBlobStore{}
	queue := &mockQueue{}
	svc := NewService(repo, blobs, queue, Config{UnprocessedBucket: "unprocessed-images"})
	return svc, repo, blobs, queue
}

func validProduct() *product.Product {
	return &product.Product{
		ID:       "p1",
		Name:     "Widget",
		Price:    decimal.NewFromFloat(2.50),
		Quantity: 5,
		Category: "products",
	}
}

func TestCreateProduct_OK(t *testing.T) {
	svc, repo, _, _ := newTestService()

	created, err := svc.CreateProduct(context.Background(), validProduct())
	require.NoError(t, err)
	assert.Equal(t, "p1", created.ID)
	assert.Equal(t, 1, repo.createCalls)
}

func TestCreateProduct_InvalidNeverReachesStore(t *testing.T) {
	svc, repo, blobs, queue := newTestService()

	p := validProduct()
	p.Price = decimal.Zero

	_, err := svc.CreateProduct(context.Background(), p)
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))
	assert.Zero(t, repo.createCalls)
	assert.Empty(t, blobs.uploads)
	assert.Empty(t, queue.messages)
}

func TestCreateProduct_NilIsParseFailure(t *testing.T) {
	svc, repo, _, _ := newTestService()

	_, err := svc.CreateProduct(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, fault.KindParse, fault.KindOf(err))
	assert.Zero(t, repo.createCalls)
}

func TestUpdateProduct_OK(t *testing.T) {
	svc, repo, _, _ := newTestService()

	_, err := svc.UpdateProduct(context.Background(), validProduct())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.replaceCalls)
	assert.Zero(t, repo.createCalls)
}

func TestGetProduct(t *testing.T) {
	svc, repo, _, _ := newTestService()

	p, err := svc.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "p1", repo.lastGetID)
	assert.Equal(t, product.DefaultPartitionKey, repo.lastGetPK)

	_, err = svc.GetProduct(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))
	assert.Equal(t, 1, repo.getCalls)
}

func TestUploadImage_OK(t *testing.T) {
	svc, _, blobs, _ := newTestService()

	address, err := svc.UploadImage(context.Background(), "unprocessed-images", "cat.png",
		strings.NewReader("bytes"), 5, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://blob/unprocessed-images/cat.png", address)
	assert.Equal(t, []string{"unprocessed-images"}, blobs.ensuredBuckets)
}

func TestUploadImage_ArgumentValidation(t *testing.T) {
	svc, _, blobs, _ := newTestService()
	ctx := context.Background()

	_, err := svc.UploadImage(ctx, "", "cat.png", strings.NewReader("x"), 1, "")
	assert.True(t, fault.IsValidation(err))

	_, err = svc.UploadImage(ctx, "bucket", "", strings.NewReader("x"), 1, "")
	assert.True(t, fault.IsValidation(err))

	_, err = svc.UploadImage(ctx, "bucket", "cat.png", nil, 1, "")
	assert.True(t, fault.IsValidation(err))

	// Argument failures must short-circuit before any bucket work.
	assert.Empty(t, blobs.ensuredBuckets)
}

func TestEnqueueTask(t *testing.T) {
	svc, _, _, queue := newTestService()

	require.NoError(t, svc.EnqueueTask(context.Background(), "hello"))
	assert.Equal(t, []string{"hello"}, queue.messages)

	err := svc.EnqueueTask(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))
	assert.Len(t, queue.messages, 1)
}

func TestEnqueueImageProcessing(t *testing.T) {
	svc, _, _, queue := newTestService()

	p := validProduct()
	p.FileName = "cat.png"
	p.UnprocessedImageURL = "http://blob/unprocessed-images/cat.png"

	require.NoError(t, svc.EnqueueImageProcessing(context.Background(), p))
	require.Len(t, queue.messages, 1)

	var msg imagetask.Message
	require.NoError(t, json.Unmarshal([]byte(queue.messages[0]), &msg))
	assert.Equal(t, "p1", msg.ProductID)
	assert.Equal(t, "cat.png", msg.FileName)
	assert.Equal(t, p.UnprocessedImageURL, msg.UnprocessedImageURL)
}
