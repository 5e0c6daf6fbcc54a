package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookie = "flash"

// Flash kinds
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot notification shown on the next rendered page
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func setFlash(w http.ResponseWriter, kind, message string) {
	data, err := json.Marshal(Flash{Kind: kind, Message: message})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the pending flash
func popFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	data, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var f Flash
	if err := json.Unmarshal(data, &f); err != nil || f.Message == "" {
		return nil
	}
	return &f
}
