// Package storeserver реализует REST-интерфейс хранилища ресурсов: JSON-коллекции отелей, номеров,
// пользователей, бронирований, оплат, бонусных счетов, списаний и отзывов.
package storeserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/smarthotel/internal/middleware"
	"github.com/mmeshcher/smarthotel/internal/model"
	"github.com/mmeshcher/smarthotel/internal/repository"
)

// APIPrefix: префикс всех маршрутов хранилища.
const APIPrefix = "/api/v1"

const maxBodySize = 1 << 20

// Repository описывает контракт доступа к коллекциям документов.
type Repository interface {
	List(ctx context.Context, collection string, filters []repository.Filter, limit int) ([]repository.Document, error)
	Get(ctx context.Context, collection, id string) (*repository.Document, error)
	Create(ctx context.Context, collection, id string, data map[string]any) (*repository.Document, error)
	Patch(ctx context.Context, collection, id string, patch map[string]any, expectedVersion int64) (*repository.Document, error)
	Delete(ctx context.Context, collection, id string) error
}

// Server обрабатывает HTTP-запросы к хранилищу ресурсов.
type Server struct {
	repo   Repository
	logger *zap.Logger
}

// NewServer создаёт HTTP-сервер хранилища поверх репозитория.
func NewServer(repo Repository, logger *zap.Logger) *Server {
	return &Server{
		repo:   repo,
		logger: logger,
	}
}

// SetupRouter настраивает маршруты хранилища.
func (s *Server) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.GzipMiddleware)
	r.Use(middleware.Logger(s.logger))

	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/{collection}", s.List)
		r.Post("/{collection}", s.Create)
		r.Get("/{collection}/{id}", s.Get)
		r.Patch("/{collection}/{id}", s.Patch)
		r.Delete("/{collection}/{id}", s.Delete)
		r.Get("/{collection}/{alias}/{value}", s.ListBy)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}

// List возвращает документы коллекции; параметры запроса, кроме limit, задают фильтры по полям.
func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	name, _, ok := lookupCollection(w, r)
	if !ok {
		return
	}

	var filters []repository.Filter
	for field, values := range r.URL.Query() {
		if field == "limit" || len(values) == 0 {
			continue
		}
		filters = append(filters, repository.Filter{Field: field, Value: values[0]})
	}

	s.writeList(w, r, name, filters)
}

// ListBy возвращает документы коллекции с указанным значением поля: GET /bookings/user/{user_id}.
func (s *Server) ListBy(w http.ResponseWriter, r *http.Request) {
	name, c, ok := lookupCollection(w, r)
	if !ok {
		return
	}

	field, ok := c.aliases[chi.URLParam(r, "alias")]
	if !ok {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	s.writeList(w, r, name, []repository.Filter{{Field: field, Value: chi.URLParam(r, "value")}})
}

// Get возвращает документ по идентификатору, а для коллекций со списочным ключом: список документов.
func (s *Server) Get(w http.ResponseWriter, r *http.Request) {
	name, c, ok := lookupCollection(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if c.listKey != "" {
		s.writeList(w, r, name, []repository.Filter{{Field: c.listKey, Value: id}})
		return
	}

	doc, err := s.repo.Get(r.Context(), name, id)
	if err != nil {
		s.handleRepoError(w, err, name, id)
		return
	}

	writeDocument(w, http.StatusOK, doc)
}

// Create сохраняет новый документ, назначая идентификатор, если клиент его не передал.
func (s *Server) Create(w http.ResponseWriter, r *http.Request) {
	name, c, ok := lookupCollection(w, r)
	if !ok {
		return
	}

	data, err := decodeObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, _ := data[c.idField].(string)
	if id == "" {
		if c.clientKeyed {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s is required", c.idField))
			return
		}
		id = model.NewID(c.idPrefix)
		data[c.idField] = id
	}
	if c.serialField != "" {
		if serial, _ := data[c.serialField].(string); serial == "" {
			data[c.serialField] = model.NewID(c.serialPrefix)
		}
	}

	doc, err := s.repo.Create(r.Context(), name, id, data)
	if err != nil {
		s.handleRepoError(w, err, name, id)
		return
	}

	writeDocument(w, http.StatusCreated, doc)
}

// Patch сливает тело запроса с документом. Заголовок If-Match включает проверку версии.
func (s *Server) Patch(w http.ResponseWriter, r *http.Request) {
	name, c, ok := lookupCollection(w, r)
	if !ok {
		return
	}

	expectedVersion, err := parseIfMatch(r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patch, err := decodeObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	delete(patch, c.idField)

	id := chi.URLParam(r, "id")
	doc, err := s.repo.Patch(r.Context(), name, id, patch, expectedVersion)
	if err != nil {
		s.handleRepoError(w, err, name, id)
		return
	}

	writeDocument(w, http.StatusOK, doc)
}

// Delete удаляет документ.
func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	name, _, ok := lookupCollection(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.repo.Delete(r.Context(), name, id); err != nil {
		s.handleRepoError(w, err, name, id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeList(w http.ResponseWriter, r *http.Request, name string, filters []repository.Filter) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	docs, err := s.repo.List(r.Context(), name, filters, limit)
	if err != nil {
		s.handleRepoError(w, err, name, "")
		return
	}

	resp := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		resp = append(resp, d.Data)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRepoError(w http.ResponseWriter, err error, collection, id string) {
	switch {
	case errors.Is(err, repository.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s %s not found", collection, id))
	case errors.Is(err, repository.ErrDocumentExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrVersionMismatch):
		writeError(w, http.StatusPreconditionFailed, err.Error())
	default:
		s.logger.Error("store operation error", zap.Error(err), zap.String("collection", collection), zap.String("id", id))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func lookupCollection(w http.ResponseWriter, r *http.Request) (string, collection, bool) {
	name := chi.URLParam(r, "collection")
	c, ok := collections[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown collection %q", name))
		return "", collection{}, false
	}
	return name, c, true
}

func decodeObject(r *http.Request) (map[string]any, error) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("body must be a JSON object: %w", err)
	}
	if data == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return data, nil
}

func parseIfMatch(header string) (int64, error) {
	if header == "" || header == "*" {
		return 0, nil
	}

	v := strings.TrimPrefix(strings.TrimSpace(header), "W/")
	v = strings.Trim(v, `"`)

	version, err := strconv.ParseInt(v, 10, 64)
	if err != nil || version <= 0 {
		return 0, fmt.Errorf("invalid If-Match header %q", header)
	}
	return version, nil
}

func writeDocument(w http.ResponseWriter, status int, doc *repository.Document) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(doc.Version, 10)))
	writeJSON(w, status, doc.Data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
