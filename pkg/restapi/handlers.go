package restapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ha1tch/pantrycache/pkg/catalog"
	"github.com/ha1tch/pantrycache/pkg/dateutil"
	"github.com/ha1tch/pantrycache/pkg/idcache"
	"github.com/ha1tch/pantrycache/pkg/store"
)

// Every handler follows the same shape: decode and validate outside the
// lock, then take s.mu for the whole facade interaction — including DTO
// conversion and Handle.Close, both of which touch identity-map state —
// and write the response after releasing it.

// Response-cache group and key for the category list endpoint. Mutations
// invalidate the whole group.
const (
	categoryGroup   = "category"
	categoryListKey = "category:list"
)

// --- Categories ---

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if valid, errs := s.validator.Validate("category", body); !valid {
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "validation failed", "details": errs})
		return
	}

	schema := catalog.CategorySchema{
		Name:     stringField(body, "name"),
		Archived: boolField(body, "archived"),
	}
	if img, ok := body["image_path"].(string); ok {
		schema.ImagePath = &img
	}

	s.mu.Lock()
	h, err := s.db.CreateCategory(r.Context(), schema)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Msg("failed to create category")
		s.writeError(w, http.StatusInternalServerError, "failed to create category")
		return
	}
	dto := categoryToDTO(h)
	h.Close()
	s.mu.Unlock()

	s.respCache.InvalidateGroup(r.Context(), categoryGroup)
	s.writeJSON(w, http.StatusCreated, dto)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	if body, ok := s.respCache.GetBody(r.Context(), categoryListKey); ok {
		s.writeRawJSON(w, http.StatusOK, body)
		return
	}

	s.mu.Lock()
	handles, err := s.db.RetrieveCategoriesFiltered(r.Context(), func(catalog.CategorySchema) bool { return true })
	if err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Msg("failed to list categories")
		s.writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	dtos := make([]categoryDTO, len(handles))
	for i, h := range handles {
		dtos[i] = categoryToDTO(h)
		h.Close()
	}
	s.mu.Unlock()

	body, err := json.Marshal(dtos)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to render category list")
		s.writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	s.respCache.PutBody(r.Context(), categoryGroup, categoryListKey, body)
	s.writeRawJSON(w, http.StatusOK, body)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	s.mu.Lock()
	h, err := s.db.RetrieveCategory(r.Context(), id)
	if err != nil {
		s.mu.Unlock()
		s.writeStoreError(w, err, "category", id)
		return
	}
	dto := categoryToDTO(h)
	h.Close()
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	s.mu.Lock()
	h, err := s.db.RetrieveCategory(r.Context(), id)
	if err != nil {
		s.mu.Unlock()
		s.writeStoreError(w, err, "category", id)
		return
	}
	applyCategoryBody(h, body)
	err = s.db.CommitCategory(r.Context(), h)
	dto := categoryToDTO(h)
	h.Close()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Msg("failed to commit category")
		s.writeError(w, http.StatusInternalServerError, "failed to update category")
		return
	}

	s.respCache.InvalidateGroup(r.Context(), categoryGroup)
	s.writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	s.mu.Lock()
	h, err := s.db.RetrieveCategory(r.Context(), id)
	if err != nil {
		s.mu.Unlock()
		s.writeStoreError(w, err, "category", id)
		return
	}
	h, err = s.db.RemoveCategory(r.Context(), h)
	h.Close()
	s.mu.Unlock()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to remove category")
		s.writeError(w, http.StatusInternalServerError, "failed to delete category")
		return
	}

	s.respCache.InvalidateGroup(r.Context(), categoryGroup)
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "category deleted"})
}

// --- Descriptions ---

func (s *Server) handleCreateDescription(w http.ResponseWriter, r *http.Request) {
	catID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if valid, errs := s.validator.Validate("description", body); !valid {
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "validation failed", "details": errs})
		return
	}

	schema := catalog.DescriptionSchema{
		Name:                stringField(body, "name"),
		DaysValidSuggestion: uintField(body, "days_valid_suggestion"),
		Archived:            boolField(body, "archived"),
	}
	if bc, ok := body["barcode"].(string); ok {
		schema.Barcode = &bc
	}
	if img, ok := body["image_path"].(string); ok {
		schema.ImagePath = &img
	}

	s.mu.Lock()
	parent, err := s.db.RetrieveCategory(r.Context(), catID)
	if err != nil {
		s.mu.Unlock()
		s.writeStoreError(w, err, "category", catID)
		return
	}
	h, err := s.db.CreateDescription(r.Context(), parent, schema)
	parent.Close()
	if err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Msg("failed to create description")
		s.writeError(w, http.StatusInternalServerError, "failed to create description")
		return
	}
	dto := descriptionToDTO(h)
	h.Close()
	s.mu.Unlock()

	s.writeJSON(w, http.StatusCreated, dto)
}

func (s *Server) handleListDescriptionsByCategory(w http.ResponseWriter, r *http.Request) {
	catID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	s.mu.Lock()
	handles, err := s.db.RetrieveDescriptionsByCategory(r.Context(), catID)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Msg("failed to list descriptions")
		s.writeError(w, http.StatusInternalServerError, "failed to list descriptions")
		return
	}
	dtos := make([]descriptionDTO, len(handles))
	for i, h := range handles {
		dtos[i] = descriptionToDTO(h)
		h.Close()
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetDescription(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	s.mu.Lock()
	h, err := s.db.RetrieveDescription(r.Context(), id)
	if err != nil {
		s.mu.Unlock()
		s.writeStoreError(w, err, "description", id)
		return
	}
	dto := descriptionToDTO(h)
	h.Close()
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleUpdateDescription(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	s.mu.Lock()
	h, err := s.db.RetrieveDescription(r.Context(), id)
	if err != nil {
		s.mu.Unlock()
		s.writeStoreError(w, err, "description", id)
		return
	}
	applyDescriptionBody(h, body)
	err = s.db.CommitDescription(r.Context(), h)
	dto := descriptionToDTO(h)
	h.Close()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Msg("failed to commit description")
		s.writeError(w, http.StatusInternalServerError, "failed to update description")
		return
	}

	s.writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleDeleteDescription(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	s.mu.Lock()
	h, err := s.db.RetrieveDescription(r.Context(), id)
	if err != nil {
		s.mu.Unlock()
		s.writeStoreError(w, err, "description", id)
		return
	}
	h, err = s.db.RemoveDescription(r.Context(), h)
	h.Close()
	s.mu.Unlock()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to remove description")
		s.writeError(w, http.StatusInternalServerError, "failed to delete description")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "description deleted"})
}

// --- Instances ---

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	descID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid description id")
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if valid, errs := s.validator.Validate("instance", body); !valid {
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "validation failed", "details": errs})
		return
	}

	purchase, err := dateutil.ParseISODate(stringField(body, "purchase_date"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	expiration, err := dateutil.ParseISODate(stringField(body, "expiration_date"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	schema := catalog.InstanceSchema{
		PurchaseDate:   purchase,
		ExpirationDate: expiration,
		Open:           boolField(body, "open"),
		Consumed:       boolField(body, "consumed"),
	}
	if days, ok := body["days_to_expire_when_opened"].(float64); ok {
		v := uint(days)
		schema.DaysToExpireWhenOpened = &v
	}

	s.mu.Lock()
	parent, err := s.db.RetrieveDescription(r.Context(), descID)
	if err != nil {
		s.mu.Unlock()
		s.writeStoreError(w, err, "description", descID)
		return
	}
	h, err := s.db.CreateInstance(r.Context(), parent, schema)
	parent.Close()
	if err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Msg("failed to create instance")
		s.writeError(w, http.StatusInternalServerError, "failed to create instance")
		return
	}
	dto := instanceToDTO(h)
	h.Close()
	s.mu.Unlock()

	s.writeJSON(w, http.StatusCreated, dto)
}

func (s *Server) handleListInstancesByDescription(w http.ResponseWriter, r *http.Request) {
	descID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid description id")
		return
	}

	s.mu.Lock()
	handles, err := s.db.RetrieveInstancesByDescription(r.Context(), descID)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Msg("failed to list instances")
		s.writeError(w, http.StatusInternalServerError, "failed to list instances")
		return
	}
	dtos := make([]instanceDTO, len(handles))
	for i, h := range handles {
		dtos[i] = instanceToDTO(h)
		h.Close()
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	s.mu.Lock()
	h, err := s.db.RetrieveInstance(r.Context(), id)
	if err != nil {
		s.mu.Unlock()
		s.writeStoreError(w, err, "instance", id)
		return
	}
	dto := instanceToDTO(h)
	h.Close()
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleUpdateInstance(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	s.mu.Lock()
	h, err := s.db.RetrieveInstance(r.Context(), id)
	if err != nil {
		s.mu.Unlock()
		s.writeStoreError(w, err, "instance", id)
		return
	}
	if err := applyInstanceBody(h, body); err != nil {
		h.Close()
		s.mu.Unlock()
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.db.CommitInstance(r.Context(), h)
	dto := instanceToDTO(h)
	h.Close()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Msg("failed to commit instance")
		s.writeError(w, http.StatusInternalServerError, "failed to update instance")
		return
	}

	s.writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	s.mu.Lock()
	h, err := s.db.RetrieveInstance(r.Context(), id)
	if err != nil {
		s.mu.Unlock()
		s.writeStoreError(w, err, "instance", id)
		return
	}
	h, err = s.db.RemoveInstance(r.Context(), h)
	h.Close()
	s.mu.Unlock()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to remove instance")
		s.writeError(w, http.StatusInternalServerError, "failed to delete instance")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "instance deleted"})
}

// --- field mutation helpers ---

func applyCategoryBody(h *catalog.CategoryHandle, body map[string]interface{}) {
	s := h.Entry().Schema()
	if v, ok := body["name"].(string); ok {
		s.Name = v
	}
	if v, ok := body["archived"].(bool); ok {
		s.Archived = v
	}
	if v, ok := body["image_path"].(string); ok {
		s.ImagePath = &v
	}
}

func applyDescriptionBody(h *catalog.DescriptionHandle, body map[string]interface{}) {
	s := h.Entry().Schema()
	if v, ok := body["name"].(string); ok {
		s.Name = v
	}
	if v, ok := body["days_valid_suggestion"].(float64); ok {
		s.DaysValidSuggestion = uint(v)
	}
	if v, ok := body["archived"].(bool); ok {
		s.Archived = v
	}
	if v, ok := body["barcode"].(string); ok {
		s.Barcode = &v
	}
	if v, ok := body["image_path"].(string); ok {
		s.ImagePath = &v
	}
}

func applyInstanceBody(h *catalog.InstanceHandle, body map[string]interface{}) error {
	s := h.Entry().Schema()
	if v, ok := body["purchase_date"].(string); ok {
		t, err := dateutil.ParseISODate(v)
		if err != nil {
			return err
		}
		s.PurchaseDate = t
	}
	if v, ok := body["expiration_date"].(string); ok {
		t, err := dateutil.ParseISODate(v)
		if err != nil {
			return err
		}
		s.ExpirationDate = t
	}
	if v, ok := body["open"].(bool); ok {
		s.Open = v
	}
	if v, ok := body["consumed"].(bool); ok {
		s.Consumed = v
	}
	if v, ok := body["days_to_expire_when_opened"].(float64); ok {
		u := uint(v)
		s.DaysToExpireWhenOpened = &u
	}
	return nil
}

// --- generic helpers ---

func stringField(body map[string]interface{}, key string) string {
	v, _ := body[key].(string)
	return v
}

func boolField(body map[string]interface{}, key string) bool {
	v, _ := body[key].(bool)
	return v
}

func uintField(body map[string]interface{}, key string) uint {
	v, ok := body[key].(float64)
	if !ok {
		return 0
	}
	return uint(v)
}

func parseID(raw string) (idcache.ID, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return idcache.ID(n), nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeRawJSON writes an already-rendered JSON body, as produced by a
// handler or replayed from the response cache.
func (s *Server) writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"status":  status,
		},
	})
}

// writeStoreError renders a store.ErrNotFound as 404 and anything else as
// 500, logging the underlying error only in the 500 case.
func (s *Server) writeStoreError(w http.ResponseWriter, err error, kind string, id idcache.ID) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found", kind, int64(id)))
		return
	}
	s.logger.Error().Err(err).Str("kind", kind).Int64("id", int64(id)).Msg("store operation failed")
	s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load %s", kind))
}
