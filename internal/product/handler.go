package product

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/loja/storefront/internal/media"
	"github.com/loja/storefront/internal/response"
)

// maxUploadSize bounds the multipart body of product forms.
const maxUploadSize = 10 << 20

// Handler holds HTTP handlers for catalog endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new product Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// productView adds display prices to a Product.
type productView struct {
	*Product
	PriceDisplay            string `json:"priceDisplay"            example:"R$ 59,90"`
	PromotionalPriceDisplay string `json:"promotionalPriceDisplay" example:"R$ 49,90"`
}

func viewOf(p *Product) productView {
	return productView{
		Product:                 p,
		PriceDisplay:            FormatPrice(p.MarketingPrice),
		PromotionalPriceDisplay: FormatPrice(p.PromotionalPrice),
	}
}

type pageView struct {
	Products []productView `json:"products"`
	Page     int           `json:"page"`
	Pages    int           `json:"pages"`
	Total    int           `json:"total"`
}

func pageViewOf(p *Page) pageView {
	v := pageView{Products: make([]productView, 0, len(p.Products)), Page: p.Page, Pages: p.Pages, Total: p.Total}
	for i := range p.Products {
		v.Products = append(v.Products, viewOf(&p.Products[i]))
	}
	return v
}

type variationRequest struct {
	Name             *string         `json:"name"             example:"Tamanho M"`
	Price            decimal.Decimal `json:"price"            swaggertype:"string" example:"59.90"`
	PromotionalPrice decimal.Decimal `json:"promotionalPrice" swaggertype:"string" example:"49.90"`
	Stock            int             `json:"stock"            example:"10"`
}

// List godoc
//
//	@Summary		List products
//	@Description	Returns one page of the catalog, newest first.
//	@Tags			products
//	@Produce		json
//	@Param			page	query		int	false	"Page number (1-based)"
//	@Success		200		{object}	response.Envelope{data=pageView}
//	@Failure		500		{object}	response.Envelope
//	@Router			/products [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), pageParam(r))
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, pageViewOf(page))
}

// Search godoc
//
//	@Summary		Search products
//	@Description	Case-insensitive match on name and descriptions.
//	@Tags			products
//	@Produce		json
//	@Param			q		query		string	false	"Search term"
//	@Param			page	query		int		false	"Page number (1-based)"
//	@Success		200		{object}	response.Envelope{data=pageView}
//	@Failure		500		{object}	response.Envelope
//	@Router			/products/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	page, err := h.svc.Search(r.Context(), term, pageParam(r))
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, pageViewOf(page))
}

// Detail godoc
//
//	@Summary		Product detail
//	@Description	Returns a product and its variations.
//	@Tags			products
//	@Produce		json
//	@Param			slug	path		string	true	"Product slug"
//	@Success		200		{object}	response.Envelope{data=productView}
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/products/{slug} [get]
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, err)
		return
	}
	response.OK(w, viewOf(p))
}

// Create godoc
//
//	@Summary		Create product
//	@Description	Creates a product from a multipart form. An optional image is resized and uploaded to object storage.
//	@Tags			admin
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			name				formData	string	true	"Name"
//	@Param			shortDescription	formData	string	true	"Short description"
//	@Param			longDescription		formData	string	false	"Long description"
//	@Param			slug				formData	string	false	"Slug (derived from name when empty)"
//	@Param			marketingPrice		formData	string	true	"Price"
//	@Param			promotionalPrice	formData	string	false	"Promotional price"
//	@Param			type				formData	string	false	"V (variable) or S (simple)"
//	@Param			image				formData	file	false	"Product image"
//	@Success		201					{object}	response.Envelope{data=productView}
//	@Failure		400					{object}	response.Envelope
//	@Failure		409					{object}	response.Envelope
//	@Failure		502					{object}	response.Envelope
//	@Router			/admin/products [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p := &Product{}
	closeImage, err := bindForm(r, p)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	defer closeImage()

	if err := h.svc.Save(r.Context(), p); err != nil {
		h.fail(w, err)
		return
	}
	response.Created(w, viewOf(p))
}

// Update godoc
//
//	@Summary		Update product
//	@Description	Replaces the fields present in the multipart form. A new image replaces the stored one.
//	@Tags			admin
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id					path		string	true	"Product ID"
//	@Param			name				formData	string	false	"Name"
//	@Param			shortDescription	formData	string	false	"Short description"
//	@Param			longDescription		formData	string	false	"Long description"
//	@Param			slug				formData	string	false	"Slug"
//	@Param			marketingPrice		formData	string	false	"Price"
//	@Param			promotionalPrice	formData	string	false	"Promotional price"
//	@Param			type				formData	string	false	"V (variable) or S (simple)"
//	@Param			image				formData	file	false	"Product image"
//	@Success		200					{object}	response.Envelope{data=productView}
//	@Failure		400					{object}	response.Envelope
//	@Failure		404					{object}	response.Envelope
//	@Failure		502					{object}	response.Envelope
//	@Router			/admin/products/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}

	closeImage, err := bindForm(r, p)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	defer closeImage()

	if err := h.svc.Save(r.Context(), p); err != nil {
		h.fail(w, err)
		return
	}
	response.OK(w, viewOf(p))
}

// Delete godoc
//
//	@Summary	Delete product
//	@Tags		admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Product ID"
//	@Success	200	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Router		/admin/products/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	response.OK(w, map[string]bool{"success": true})
}

// CreateVariation godoc
//
//	@Summary	Add variation
//	@Tags		admin
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string				true	"Product ID"
//	@Param		request	body		variationRequest	true	"Variation"
//	@Success	201		{object}	response.Envelope{data=Variation}
//	@Failure	400		{object}	response.Envelope
//	@Failure	404		{object}	response.Envelope
//	@Router		/admin/products/{id}/variations [post]
func (h *Handler) CreateVariation(w http.ResponseWriter, r *http.Request) {
	var req variationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	v := req.variation()
	v.ProductID = chi.URLParam(r, "id")
	if err := h.svc.AddVariation(r.Context(), v); err != nil {
		h.fail(w, err)
		return
	}
	response.Created(w, v)
}

// UpdateVariation godoc
//
//	@Summary	Update variation
//	@Tags		admin
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string				true	"Variation ID"
//	@Param		request	body		variationRequest	true	"Variation"
//	@Success	200		{object}	response.Envelope{data=Variation}
//	@Failure	400		{object}	response.Envelope
//	@Failure	404		{object}	response.Envelope
//	@Router		/admin/variations/{id} [put]
func (h *Handler) UpdateVariation(w http.ResponseWriter, r *http.Request) {
	var req variationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	v := req.variation()
	v.ID = chi.URLParam(r, "id")
	if err := h.svc.UpdateVariation(r.Context(), v); err != nil {
		h.fail(w, err)
		return
	}
	response.OK(w, v)
}

// DeleteVariation godoc
//
//	@Summary	Delete variation
//	@Tags		admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Variation ID"
//	@Success	200	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Router		/admin/variations/{id} [delete]
func (h *Handler) DeleteVariation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteVariation(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	response.OK(w, map[string]bool{"success": true})
}

func (req variationRequest) variation() *Variation {
	return &Variation{
		Name:             req.Name,
		Price:            req.Price,
		PromotionalPrice: req.PromotionalPrice,
		Stock:            req.Stock,
	}
}

// fail maps service errors to responses.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "product not found")
	case errors.Is(err, ErrInvalid):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrSlugTaken):
		response.Conflict(w, "slug already in use")
	case errors.Is(err, media.ErrImageTooLarge):
		response.BadRequest(w, "product image exceeds the pixel limit")
	case errors.Is(err, media.ErrInvalidImage):
		response.BadRequest(w, "product image is not a readable image")
	case errors.Is(err, ErrImage):
		response.Error(w, http.StatusBadGateway, "product image could not be processed")
	default:
		response.InternalError(w)
	}
}

// bindForm copies the multipart fields present in r onto p and attaches the
// uploaded image, if any. The returned func closes the image file.
func bindForm(r *http.Request, p *Product) (func(), error) {
	noop := func() {}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return noop, errors.New("invalid form data")
	}

	setString := func(key string, dst *string) {
		if vs, ok := r.Form[key]; ok && len(vs) > 0 {
			*dst = strings.TrimSpace(vs[0])
		}
	}
	setString("name", &p.Name)
	setString("shortDescription", &p.ShortDescription)
	setString("longDescription", &p.LongDescription)
	setString("slug", &p.Slug)

	var typ string
	setString("type", &typ)
	if typ != "" {
		p.Type = Type(strings.ToUpper(typ))
	}

	for key, dst := range map[string]*decimal.Decimal{
		"marketingPrice":   &p.MarketingPrice,
		"promotionalPrice": &p.PromotionalPrice,
	} {
		var raw string
		setString(key, &raw)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(strings.Replace(raw, ",", ".", 1))
		if err != nil {
			return noop, errors.New(key + " must be a number")
		}
		*dst = d
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return noop, nil
	}
	if err != nil {
		return noop, errors.New("invalid image upload")
	}
	p.Image = &Upload{Filename: header.Filename, Size: header.Size, Body: file}
	return func() { file.Close() }, nil
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
