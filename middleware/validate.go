package middleware

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/GabeYou/Hack-The-Valley-2025/utils"
)

// ValidateJSON decodes a JSON body into dst and runs its `validate` tags. On
// failure it has already written the error response.
func ValidateJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		utils.WriteJSON(w, http.StatusUnsupportedMediaType, utils.ErrorResponse{Error: "Content-Type must be application/json"})
		return http.ErrNotSupported
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteJSON(w, http.StatusRequestEntityTooLarge, utils.ErrorResponse{Error: "Request body too large"})
			return err
		}
		utils.WriteError(w, utils.ErrValidation("Invalid JSON body"))
		return err
	}
	if err := utils.ValidateStruct(dst); err != nil {
		utils.WriteError(w, utils.ErrValidation(err.Error()))
		return err
	}
	return nil
}
