package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
	"github.com/lotusbook/payments-backend/pkg/logger"
	"github.com/lotusbook/payments-backend/pkg/types"
)

// publicMessageCodes surface the service's own message instead of the generic one.
var publicMessageCodes = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:          true,
	pkgerrors.CodeForbidden:           true,
	pkgerrors.CodeUnauthorized:        true,
	pkgerrors.CodeNotFound:            true,
	pkgerrors.CodeConflict:            true,
	pkgerrors.CodeStateConflict:       true,
	pkgerrors.CodeIdempotency:         true,
	pkgerrors.CodeInsufficientBalance: true,
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteMessage writes the bare {"message": ...} body gateway callbacks expect.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, types.MessageBody{Message: message})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if publicMessageCodes[typed.Code()] {
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:    string(typed.Code()),
			Message: msg,
		},
	}
	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		dump := pkgerrors.Dump(err)
		ctx = logg.WithFields(ctx, map[string]any{
			"error":           dump.TopMessage,
			"error_code":      dump.Code,
			"error_chain":     dump.Chain,
			"retryable":       dump.Retryable,
			"upstream_status": dump.UpstreamStatus,
			"pg_code":         dump.PGCode,
			"pg_detail":       dump.PGDetail,
			"pg_constraint":   dump.PGConstraint,
		})
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	WriteJSON(w, meta.HTTPStatus, payload)
}

// WriteJSON encodes payload without an envelope.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
