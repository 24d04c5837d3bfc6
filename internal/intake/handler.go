package intake

import (
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Freeman-md/funcify/internal/domain/product"
	"github.com/Freeman-md/funcify/internal/fault"
)

// permittedExtensions is the closed allow-list for uploaded image files,
// matched case-insensitively.
var permittedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
}

// HTTPConfig holds the request-surface settings for the intake handler.
type HTTPConfig struct {
	// UnprocessedBucket receives raw image uploads.
	UnprocessedBucket string
	// MaxUploadBytes bounds multipart form memory and body size.
	MaxUploadBytes int64
}

// HTTPHandler exposes the intake workflows over HTTP. It is the single
// translation point from error kinds to response envelopes; backend error
// types never cross this boundary.
type HTTPHandler struct {
	service *Service
	cfg     HTTPConfig
}

// NewHTTPHandler constructs the intake HTTP handler.
func NewHTTPHandler(service *Service, cfg HTTPConfig) *HTTPHandler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	return &HTTPHandler{service: service, cfg: cfg}
}

// Routes registers the intake endpoints on mux.
func (h *HTTPHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/products", h.createProduct)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("PUT /api/products/{id}", h.updateProduct)
	mux.HandleFunc("POST /api/tasks", h.enqueueTask)
}

// successResponse is the 200 envelope: a confirmation message plus the
// affected product, when there is one.
type successResponse struct {
	Message string           `json:"Message"`
	Product *product.Product `json:"Product,omitempty"`
}

// errorResponse is the envelope for every non-2xx response.
type errorResponse struct {
	Error   string `json:"Error"`
	Details string `json:"Details,omitempty"`
}

// createProduct runs the intake state machine: dispatch on content type,
// parse and validate, upload the image when present, persist, enqueue the
// resize task, respond.
func (h *HTTPHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, file, err := h.parseRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if file != nil {
		address, err := h.uploadProductImage(r, file)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		p.UnprocessedImageURL = address
		p.FileName = file.Filename
	}

	created, err := h.service.CreateProduct(ctx, p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	zctx.From(ctx).Info("Product created", zap.String("product_id", created.ID))

	// The product row already exists at this point; an enqueue failure is an
	// accepted inconsistency window, surfaced as a server error.
	if created.UnprocessedImageURL != "" {
		if err := h.service.EnqueueImageProcessing(ctx, created); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	h.writeJSON(w, http.StatusOK, successResponse{
		Message: "Product processed successfully",
		Product: created,
	})
}

// getProduct returns a single product by ID.
func (h *HTTPHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// updateProduct fully replaces the product addressed by the path ID.
func (h *HTTPHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.parseJSONProduct(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p.ID = r.PathValue("id")

	updated, err := h.service.UpdateProduct(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, successResponse{
		Message: "Product updated successfully",
		Product: updated,
	})
}

// enqueueTask submits an opaque message to the task queue.
func (h *HTTPHandler) enqueueTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"Message"`
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxUploadBytes))
	if err != nil {
		h.writeError(w, r, fault.Parse("could not read request body"))
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, fault.Parse("task data is null or invalid"))
		return
	}

	if err := h.service.EnqueueTask(r.Context(), req.Message); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, successResponse{Message: "Task enqueued successfully"})
}

// parseRequest dispatches on the request content type. The returned file
// header is non-nil only for the multipart branch.
func (h *HTTPHandler) parseRequest(r *http.Request) (*product.Product, *multipart.FileHeader, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil, fault.Validation("unsupported content type, send JSON or form-data")
	}

	switch {
	case mediaType == "multipart/form-data":
		return h.parseFormProduct(r)
	case mediaType == "application/json":
		p, err := h.parseJSONProduct(r)
		return p, nil, err
	default:
		return nil, nil, fault.Validation("unsupported content type, send JSON or form-data")
	}
}

// parseJSONProduct reads a Product-shaped JSON body. A null or unparsable
// body is a parse failure with a fixed message, distinct from field-level
// validation.
func (h *HTTPHandler) parseJSONProduct(r *http.Request) (*product.Product, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxUploadBytes))
	if err != nil {
		return nil, fault.Parse("could not read request body")
	}

	d := jx.DecodeBytes(body)
	if t := d.Next(); t == jx.Null || t == jx.Invalid {
		return nil, fault.Parse("Product data is null or invalid")
	}

	var p product.Product
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fault.Parse("Product data is null or invalid")
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Category == "" {
		p.Category = product.DefaultPartitionKey
	}
	return &p, nil
}

// parseFormProduct reads the multipart branch: Name, Price, and Quantity
// fields with strict numeric validation, plus exactly one image file whose
// extension is on the allow-list.
func (h *HTTPHandler) parseFormProduct(r *http.Request) (*product.Product, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		return nil, nil, fault.Parse("could not parse form data")
	}

	name := r.FormValue("Name")
	if strings.TrimSpace(name) == "" {
		return nil, nil, fault.Validation("product name is required")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("Price")))
	if err != nil || !price.IsPositive() {
		return nil, nil, fault.Validation("invalid price value")
	}

	quantity, err := strconv.Atoi(strings.TrimSpace(r.FormValue("Quantity")))
	if err != nil || quantity < 0 {
		return nil, nil, fault.Validation("invalid quantity value")
	}

	file, err := formImageFile(r.MultipartForm)
	if err != nil {
		return nil, nil, err
	}

	return &product.Product{
		ID:       uuid.New().String(),
		Name:     name,
		Price:    price,
		Quantity: quantity,
		Category: product.DefaultPartitionKey,
	}, file, nil
}

// formImageFile extracts the single file part from the form and checks its
// extension against the allow-list.
func formImageFile(form *multipart.Form) (*multipart.FileHeader, error) {
	var files []*multipart.FileHeader
	for _, headers := range form.File {
		files = append(files, headers...)
	}

	switch {
	case len(files) == 0:
		return nil, fault.Validation("no file uploaded, please upload an image file")
	case len(files) > 1:
		return nil, fault.Validation("exactly one image file must be uploaded")
	}

	file := files[0]
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := permittedExtensions[ext]; !ok {
		return nil, fault.Validation("invalid file format, please upload a valid image")
	}
	return file, nil
}

// uploadProductImage streams the uploaded file part to the unprocessed
// bucket and returns its address.
func (h *HTTPHandler) uploadProductImage(r *http.Request, file *multipart.FileHeader) (string, error) {
	f, err := file.Open()
	if err != nil {
		return "", fault.Parse("could not read uploaded file")
	}
	defer f.Close()

	contentType := file.Header.Get("Content-Type")
	return h.service.UploadImage(r.Context(), h.cfg.UnprocessedBucket, file.Filename, f, file.Size, contentType)
}

// writeError maps an error kind to its transport response. Unclassified
// errors are logged with their cause and reported as a bare 500.
func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	lg := zctx.From(r.Context())

	status := http.StatusInternalServerError
	title := "Internal server error"
	switch fault.KindOf(err) {
	case fault.KindValidation:
		status, title = http.StatusBadRequest, "Invalid product data"
	case fault.KindParse:
		status, title = http.StatusBadRequest, "Invalid request"
	case fault.KindNotFound:
		status, title = http.StatusNotFound, "Resource not found"
	case fault.KindStorage:
		title = "Storage error"
		if s := fault.StatusOf(err); s != 0 {
			status = s
		}
	}

	if status >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.Error(err), zap.Int("status", status))
	} else {
		lg.Info("Request rejected", zap.Error(err), zap.Int("status", status))
	}

	h.writeJSON(w, status, errorResponse{Error: title, Details: faultDetails(err)})
}

// faultDetails extracts the caller-safe message from a classified error.
func faultDetails(err error) string {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return fe.Msg
	}
	return err.Error()
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
