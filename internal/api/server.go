package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/viper"
)

// StartServer wires routes through the middleware chain and blocks serving
// HTTP (or HTTPS when configured).
func (a *API) StartServer() error {
	if err := EnsureJWTKey(); err != nil {
		return fmt.Errorf("initializing JWT key: %w", err)
	}

	mux := http.NewServeMux()

	open := func(h http.HandlerFunc) http.HandlerFunc {
		return ApplyMiddleware(h,
			JSONContentTypeMiddleware,
			RequestIDMiddleware,
			LoggingMiddleware,
			ErrorMiddleware,
			a.CORSMiddleware,
		)
	}
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return open(a.JWTMiddleware(h))
	}

	mux.HandleFunc("POST /auth", open(a.AuthHandler))

	mux.HandleFunc("GET /session", protected(a.SessionHandler))
	mux.HandleFunc("POST /session/connect", protected(a.ConnectHandler))
	mux.HandleFunc("POST /session/disconnect", protected(a.DisconnectHandler))

	mux.HandleFunc("GET /properties", protected(a.PropertiesHandler))
	mux.HandleFunc("POST /properties", protected(a.CreatePropertyHandler))
	mux.HandleFunc("POST /properties/{id}/request", protected(a.RequestRentHandler))

	mux.HandleFunc("GET /contracts", protected(a.ContractsHandler))
	mux.HandleFunc("POST /contracts", protected(a.CreateContractHandler))
	mux.HandleFunc("POST /contracts/{id}/sign", protected(a.SignContractHandler))
	mux.HandleFunc("POST /contracts/{id}/pay", protected(a.PayRentHandler))
	mux.HandleFunc("POST /contracts/{id}/cancel", protected(a.CancelContractHandler))

	mux.HandleFunc("GET /notifications", protected(a.NotificationsHandler))
	mux.HandleFunc("POST /notifications/read", protected(a.MarkReadHandler))

	mux.HandleFunc("GET /price", protected(a.PriceHandler))

	addr := a.listenAddr()
	log.Printf("API server listening on %s", addr)

	if viper.GetBool("use_https") {
		return http.ListenAndServeTLS(addr, viper.GetString("cert_file"), viper.GetString("key_file"), mux)
	}
	return http.ListenAndServe(addr, mux)
}

// listenAddr keeps the API on the loopback interface unless the daemon runs
// in server mode.
func (a *API) listenAddr() string {
	port := viper.GetInt("api_port")
	if a.HttpMode {
		return fmt.Sprintf(":%d", port)
	}
	return fmt.Sprintf("127.0.0.1:%d", port)
}
