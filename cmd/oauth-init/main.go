// Command oauth-init walks through the Google OAuth consent flow once and
// prints the resulting credentials, for verifying a client configuration
// before wiring it into the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

func main() {
	clientJSON := os.Getenv("GOOGLE_OAUTH_CLIENT_JSON")
	clientFile := os.Getenv("GOOGLE_OAUTH_CLIENT_FILE")
	var b []byte
	var err error
	switch {
	case clientJSON != "":
		b = []byte(clientJSON)
	case clientFile != "":
		b, err = os.ReadFile(clientFile)
		if err != nil {
			log.Fatalf("read client file: %v", err)
		}
	default:
		log.Fatalf("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}

	cfg, err := google.ConfigFromJSON(b,
		googleoauth.UserinfoEmailScope, googleoauth.UserinfoProfileScope)
	if err != nil {
		log.Fatalf("oauth config: %v", err)
	}

	// Local server for the redirect. The OAuth client must list this URI in
	// its authorized redirect URIs.
	redirectPort := os.Getenv("OAUTH_REDIRECT_PORT")
	if redirectPort == "" {
		redirectPort = "8085"
	}
	cfg.RedirectURL = "http://localhost:" + redirectPort + "/callback"

	codeCh := make(chan string, 1)
	srv := &http.Server{Addr: ":" + redirectPort}
	http.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		codeCh <- r.URL.Query().Get("code")
		go func() { time.Sleep(500 * time.Millisecond); _ = srv.Close() }()
	})
	go func() { _ = srv.ListenAndServe() }()

	url := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open this URL to authorize:\n%s\n", url)

	code := <-codeCh
	tok, err := cfg.Exchange(context.Background(), code)
	if err != nil {
		log.Fatalf("token exchange: %v", err)
	}

	svc, err := googleoauth.NewService(context.Background(),
		option.WithTokenSource(cfg.TokenSource(context.Background(), tok)))
	if err != nil {
		log.Fatalf("userinfo service: %v", err)
	}
	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		log.Fatalf("userinfo: %v", err)
	}

	out, _ := json.MarshalIndent(map[string]string{
		"email": info.Email,
		"name":  info.Name,
	}, "", "  ")
	fmt.Printf("Authorized as:\n%s\n", out)
}
