package restapi

import (
	"github.com/ha1tch/pantrycache/pkg/catalog"
	"github.com/ha1tch/pantrycache/pkg/dateutil"
)

// categoryDTO, descriptionDTO, and instanceDTO are the JSON wire shapes
// for the three sample kinds. They exist so the REST layer never leaks
// idcache.Handle/Envelope internals (or depends on json tags chosen for
// the store codec, which are free to evolve independently).

type categoryDTO struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	ImagePath *string `json:"image_path,omitempty"`
	Archived  bool    `json:"archived"`
}

func categoryToDTO(h *catalog.CategoryHandle) categoryDTO {
	s := h.Entry().Schema()
	return categoryDTO{
		ID:        int64(h.Entry().ID()),
		Name:      s.Name,
		ImagePath: s.ImagePath,
		Archived:  s.Archived,
	}
}

type descriptionDTO struct {
	ID                  int64   `json:"id"`
	CategoryID          int64   `json:"category_id"`
	Name                string  `json:"name"`
	Barcode             *string `json:"barcode,omitempty"`
	DaysValidSuggestion uint    `json:"days_valid_suggestion"`
	ImagePath           *string `json:"image_path,omitempty"`
	Archived            bool    `json:"archived"`
}

func descriptionToDTO(h *catalog.DescriptionHandle) descriptionDTO {
	s := h.Entry().Schema()
	return descriptionDTO{
		ID:                  int64(h.Entry().ID()),
		CategoryID:          int64(h.Entry().Parent().Entry().ID()),
		Name:                s.Name,
		Barcode:             s.Barcode,
		DaysValidSuggestion: s.DaysValidSuggestion,
		ImagePath:           s.ImagePath,
		Archived:            s.Archived,
	}
}

type instanceDTO struct {
	ID                     int64  `json:"id"`
	DescriptionID          int64  `json:"description_id"`
	PurchaseDate           string `json:"purchase_date"`
	ExpirationDate         string `json:"expiration_date"`
	DaysToExpireWhenOpened *uint  `json:"days_to_expire_when_opened,omitempty"`
	Open                   bool   `json:"open"`
	Consumed               bool   `json:"consumed"`
}

func instanceToDTO(h *catalog.InstanceHandle) instanceDTO {
	s := h.Entry().Schema()
	return instanceDTO{
		ID:                     int64(h.Entry().ID()),
		DescriptionID:          int64(h.Entry().Parent().Entry().ID()),
		PurchaseDate:           dateutil.FormatISODate(s.PurchaseDate),
		ExpirationDate:         dateutil.FormatISODate(s.ExpirationDate),
		DaysToExpireWhenOpened: s.DaysToExpireWhenOpened,
		Open:                   s.Open,
		Consumed:               s.Consumed,
	}
}
