package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/services"
)

func TestRespondErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &services.Error{Kind: services.KindValidation, Message: "bad"}, http.StatusBadRequest},
		{"not found", &services.Error{Kind: services.KindNotFound, Message: "bus not found"}, http.StatusNotFound},
		{"authorization", &services.Error{Kind: services.KindAuthorization, Message: "access denied"}, http.StatusForbidden},
		{"conflict", &services.Error{Kind: services.KindConflict, Message: "dup"}, http.StatusConflict},
		{"wrapped conflict", fmt.Errorf("create: %w", &services.Error{Kind: services.KindConflict, Message: "dup"}), http.StatusConflict},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			respondError(c, tc.err)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusInternalServerError && rec.Body.String() != `{"error":"Internal server error"}` {
				t.Errorf("internal error leaked: %s", rec.Body)
			}
		})
	}
}
