package webhooks

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"

	"github.com/angelmondragon/farmlink-backend/api/responses"
	payherewebhook "github.com/angelmondragon/farmlink-backend/internal/webhooks/payhere"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

const maxCallbackBytes = 64 << 10

// PayHereCallbackService reconciles one verified gateway callback.
type PayHereCallbackService interface {
	HandleCallback(ctx context.Context, n payherewebhook.Notification) (*payherewebhook.ReconciliationResult, error)
}

// PayHereWebhook receives the PayHere notify callback as a url-encoded form or a JSON body.
func PayHereWebhook(svc PayHereCallbackService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBytes)
		notification, err := decodeNotification(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"payhere_order_id":    notification.OrderID,
				"payhere_status_code": notification.StatusCode,
			})
		}

		result, err := svc.HandleCallback(ctx, notification)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func decodeNotification(r *http.Request) (payherewebhook.Notification, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var n payherewebhook.Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			return payherewebhook.Notification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid callback body")
		}
		return n, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxCallbackBytes); err != nil {
			return payherewebhook.Notification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid callback body")
		}
		return payherewebhook.NotificationFromForm(r.PostForm), nil
	default:
		if err := r.ParseForm(); err != nil {
			return payherewebhook.Notification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid callback body")
		}
		return payherewebhook.NotificationFromForm(r.PostForm), nil
	}
}
