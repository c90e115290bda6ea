package httpjson

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PathParam returns the unescaped chi URL parameter key. Term codes such
// as "2024/1" travel escaped ("2024%2F1") and chi matches on the raw path.
func PathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return strings.TrimSpace(raw)
}

// PathObjectID parses the chi URL parameter key as an ObjectID.
func PathObjectID(r *http.Request, key string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(PathParam(r, key))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid id", key)
	}
	return id, nil
}
