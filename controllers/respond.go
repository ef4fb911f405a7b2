package controllers

import (
	"net/http"

	"github.com/GabeYou/Hack-The-Valley-2025/utils"

	"go.uber.org/zap"
)

// Fail writes err as {"error": ...}. Internal failures are logged with their
// cause; the caller only sees a generic message.
func Fail(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	FailStatus(w, r, log, utils.KindOf(err).Status(), err)
}

// FailStatus is Fail with an explicit status code.
func FailStatus(w http.ResponseWriter, r *http.Request, log *zap.Logger, status int, err error) {
	if utils.KindOf(err) == utils.KindInternal {
		rid, _ := r.Context().Value(utils.RequestIDKey).(string)
		log.Error("request failed",
			zap.String("request_id", rid),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	utils.WriteErrorStatus(w, status, err)
}
