package controllers

import (
	"net/http"

	"github.com/lotusbook/payments-backend/api/middleware"
	"github.com/lotusbook/payments-backend/api/responses"
)

// PrivatePing echoes the caller identity so dashboards can check a token.
func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{
			"status": "ok",
			"role":   middleware.RoleFromContext(r.Context()),
		}
		if businessID, ok := middleware.BusinessIDFromContext(r.Context()); ok {
			payload["business_id"] = businessID.String()
		}
		responses.WriteSuccess(w, payload)
	}
}
