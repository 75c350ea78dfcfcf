package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const defaultBaseURL = "http://localhost:8080"

type tokenData struct {
	Token string `json:"token"`
}

type authResponse struct {
	Token string `json:"token"`
}

func main() {
	global := flag.NewFlagSet("coindex", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}

	client := &http.Client{Timeout: 15 * time.Second}

	switch cmd {
	case "auth":
		handleAuth(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "coins":
		handleCoins(ctx, client, *baseURL, sub, args[2:])
	case "edit":
		handleEdit(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "watch":
		handleWatch(*baseURL, args[1:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *email == "" || *password == "" {
			log.Fatal("email and password are required")
		}

		payload := map[string]string{"email": *email, "password": *password}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/login", "", payload, &resp); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("✅ logged in")
	case "register":
		fs := flag.NewFlagSet("auth register", flag.ExitOnError)
		username := fs.String("username", "", "username")
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		invite := fs.String("invite", "", "editor invite code")
		_ = fs.Parse(args)

		if *username == "" || *email == "" || *password == "" || *invite == "" {
			log.Fatal("username, email, password, and invite are required")
		}

		payload := map[string]string{
			"username": *username,
			"email":    *email,
			"password": *password,
			"invite":   *invite,
		}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/register", "", payload, &resp); err != nil {
			log.Fatalf("register failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("✅ registered and logged in")
	case "logout":
		if err := clearToken(tokenPath); err != nil {
			log.Fatalf("logout failed: %v", err)
		}
		fmt.Println("✅ logged out")
	default:
		log.Fatal("usage: coindex auth <login|register|logout>")
	}
}

func handleCoins(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "search":
		fs := flag.NewFlagSet("coins search", flag.ExitOnError)
		query := fs.String("q", "", "search query")
		denomination := fs.String("denomination", "", "denomination filter")
		rarity := fs.String("rarity", "", "rarity filter (key|semi-key|scarce|common)")
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/coins")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		if *query != "" {
			qv.Set("q", *query)
		}
		if *denomination != "" {
			qv.Set("denomination", *denomination)
		}
		if *rarity != "" {
			qv.Set("rarity", *rarity)
		}
		qv.Set("limit", fmt.Sprintf("%d", *limit))
		qv.Set("offset", fmt.Sprintf("%d", *offset))
		u.RawQuery = qv.Encode()

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, u.String(), "", nil, &resp); err != nil {
			log.Fatalf("search failed: %v", err)
		}
		printJSON(resp)
	case "show":
		fs := flag.NewFlagSet("coins show", flag.ExitOnError)
		id := fs.String("id", "", "coin identifier")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("coin id is required")
		}

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/coins/"+url.PathEscape(*id), "", nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	case "variants":
		fs := flag.NewFlagSet("coins variants", flag.ExitOnError)
		id := fs.String("id", "", "coin identifier")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("coin id is required")
		}

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/coins/"+url.PathEscape(*id)+"/variants", "", nil, &resp); err != nil {
			log.Fatalf("variants failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: coindex coins <search|show|variants>")
	}
}

func handleEdit(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	token := mustToken(tokenPath)
	switch sub {
	case "coin":
		fs := flag.NewFlagSet("edit coin", flag.ExitOnError)
		id := fs.String("id", "", "coin identifier")
		payloadJSON := fs.String("json", "", "coin record JSON")
		_ = fs.Parse(args)
		if *id == "" || *payloadJSON == "" {
			log.Fatal("id and json are required")
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(*payloadJSON), &payload); err != nil {
			log.Fatalf("invalid payload json: %v", err)
		}
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodPut, baseURL+"/edit/coins/"+url.PathEscape(*id), token, payload, &resp); err != nil {
			log.Fatalf("edit coin failed: %v", err)
		}
		printJSON(resp)
	case "variant":
		fs := flag.NewFlagSet("edit variant", flag.ExitOnError)
		id := fs.String("id", "", "variant identifier")
		payloadJSON := fs.String("json", "", "variant record JSON")
		_ = fs.Parse(args)
		if *id == "" || *payloadJSON == "" {
			log.Fatal("id and json are required")
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(*payloadJSON), &payload); err != nil {
			log.Fatalf("invalid payload json: %v", err)
		}
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodPut, baseURL+"/edit/variants/"+url.PathEscape(*id), token, payload, &resp); err != nil {
			log.Fatalf("edit variant failed: %v", err)
		}
		printJSON(resp)
	case "merge":
		fs := flag.NewFlagSet("edit merge", flag.ExitOnError)
		oldID := fs.String("old", "", "wrong identifier to merge away")
		newID := fs.String("new", "", "corrected identifier")
		_ = fs.Parse(args)
		if *oldID == "" || *newID == "" {
			log.Fatal("old and new are required")
		}

		payload := map[string]string{"new_id": *newID}
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/edit/coins/"+url.PathEscape(*oldID)+"/merge", token, payload, &resp); err != nil {
			log.Fatalf("merge failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: coindex edit <coin|variant|merge>")
	}
}

func handleWatch(baseURL string, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	wsURL := fs.String("ws", "", "WebSocket URL (defaults to /ws on API host)")
	_ = fs.Parse(args)

	endpoint := *wsURL
	if endpoint == "" {
		var err error
		endpoint, err = websocketURL(baseURL, "/ws")
		if err != nil {
			log.Fatalf("ws url: %v", err)
		}
	}
	if err := runWebSocket(endpoint); err != nil {
		log.Fatalf("watch failed: %v", err)
	}
}

func runWebSocket(wsURL string) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[watch] connected to %s", wsURL)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Println(string(msg))
	}
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.coindex-token.json"
	}
	return filepath.Join(home, ".coindex", "token.json")
}

func saveToken(path, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return "", err
	}
	return strings.TrimSpace(td.Token), nil
}

func mustToken(path string) string {
	token, err := readToken(path)
	if err != nil {
		log.Fatalf("token not found, please login: %v", err)
	}
	if token == "" {
		log.Fatal("token empty, please login")
	}
	return token
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   path,
	}).String(), nil
}

func printUsage() {
	fmt.Println("coindex <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  auth login|register|logout")
	fmt.Println("  coins search|show|variants")
	fmt.Println("  edit coin|variant|merge")
	fmt.Println("  watch")
}
