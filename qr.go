/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// mobile-friendly size
const qrSize = 320

// serveQR renders a PNG QR code linking other players to the current game.
func serveQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		png, err := qrcode.Encode(cfg.joinURL(), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(w)

		_, _ = w.Write(png)

		logf(cfg, "SERVE: Join QR for %s to %s", cfg.gameID, realIP(r))
	}
}
