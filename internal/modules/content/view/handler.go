package view

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/perse-cms/perse/internal/models"
	"github.com/perse-cms/perse/internal/pkg/pagination"
	"github.com/perse-cms/perse/internal/pkg/response"
)

type viewResponse struct {
	ID          string    `json:"id"`
	Visibility  string    `json:"visibility"`
	Title       string    `json:"title"`
	ContentBody *string   `json:"content_body"`
	ContentHead *string   `json:"content_head"`
	Description *string   `json:"description"`
	Route       string    `json:"route"`
	IsHomepage  bool      `json:"is_homepage"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

func toResponse(v *models.ViewModel) viewResponse {
	return viewResponse{
		ID: v.ID, Visibility: string(v.Visibility), Title: v.Title,
		ContentBody: v.ContentBody, ContentHead: v.ContentHead, Description: v.Description,
		Route: v.Route, IsHomepage: v.IsHomepage,
		Created: v.CreatedAt, Modified: v.UpdatedAt,
	}
}

// Middlewares are the chains RegisterRoutes mounts around the handlers.
type Middlewares struct {
	Auth   gin.HandlerFunc
	Public []gin.HandlerFunc
	Write  []gin.HandlerFunc
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mw Middlewares) {
	g := rg.Group("/views")

	p := g.Group("", mw.Public...)
	p.GET("/home", h.homepage)
	p.GET("/route/*route", h.getByRoute)

	a := g.Group("", mw.Auth)
	a.GET("", h.list)
	a.GET("/id/:id", h.getByID)
	a.POST("", chain(mw.Write, h.create)...)

	// endpoint name kept for existing form clients
	rg.POST("/view/create", chain(append([]gin.HandlerFunc{mw.Auth}, mw.Write...), h.create)...)
}

func chain(mw []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, h)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateViewDTO
	if c.ContentType() == binding.MIMEPOSTForm {
		if err := unwrapFormFields(c.Request); err != nil {
			response.BadRequest(c, "malformed request body")
			return
		}
	}
	if err := c.ShouldBind(&dto); err != nil {
		response.BadRequest(c, "malformed request body")
		return
	}
	v, err := h.svc.Create(c.Request.Context(), dto)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, toResponse(v))
}

func (h *Handler) homepage(c *gin.Context) {
	v, err := h.svc.GetHomepage(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, toResponse(v))
}

func (h *Handler) getByRoute(c *gin.Context) {
	v, err := h.svc.GetByRoute(c.Request.Context(), c.Param("route"))
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, toResponse(v))
}

func (h *Handler) getByID(c *gin.Context) {
	v, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, toResponse(v))
}

func (h *Handler) list(c *gin.Context) {
	views, pag, err := h.svc.List(c.Request.Context(), c.Query("visibility"), pagination.FromContext(c))
	if err != nil {
		fail(c, err)
		return
	}
	items := make([]viewResponse, len(views))
	for i := range views {
		items[i] = toResponse(&views[i])
	}
	response.Paged(c, items, pag)
}

// fail writes err as the standard error envelope. Internal causes stay in
// the log and never reach the client.
func fail(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}
	switch e.Kind {
	case KindValidation:
		response.ValidationFailed(c, e.Message, e.Fields)
	case KindConflict:
		response.Conflict(c, e.Message)
	case KindNotFound:
		response.NotFoundMsg(c, e.Message)
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
