package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/fatih/color"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type smoke struct {
	base   *url.URL
	client *http.Client
}

func prettyPrint(raw []byte) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Println(string(raw))
		return
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func fail(format string, args ...interface{}) {
	color.Red(format, args...)
	os.Exit(1)
}

func (s *smoke) send(method, path string, body interface{}) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.base.String()+path, reader)
	if err != nil {
		fail("Failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		fail("Failed: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, raw
}

func (s *smoke) expect(step string, resp *http.Response, raw []byte, codes ...int) {
	for _, code := range codes {
		if resp.StatusCode == code {
			color.Green("Status: %s", resp.Status)
			prettyPrint(raw)
			return
		}
	}
	color.Red("Status: %s", resp.Status)
	prettyPrint(raw)
	fail("%s failed", step)
}

// chat sends one message over the socket and prints tokens as they arrive.
func (s *smoke) chat(message string) {
	wsURL := *s.base
	wsURL.Scheme = strings.Replace(wsURL.Scheme, "http", "ws", 1)
	wsURL.Path += "/ws"

	header := http.Header{}
	for _, c := range s.client.Jar.Cookies(s.base) {
		header.Add("Cookie", c.Name+"="+c.Value)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL.String(), header)
	if err != nil {
		status := "no response"
		if resp != nil {
			status = resp.Status
		}
		fail("WebSocket handshake failed (%s): %v", status, err)
	}
	defer conn.Close()

	frame := envelope{Event: "chat:new"}
	frame.Data, _ = json.Marshal(map[string]string{"message": message})
	if err := conn.WriteJSON(frame); err != nil {
		fail("Write failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			fail("Read failed: %v", err)
		}
		switch env.Event {
		case "assistant:token":
			var chunk string
			json.Unmarshal(env.Data, &chunk)
			fmt.Print(chunk)
		case "assistant:done":
			fmt.Println()
			color.Green("assistant:done")
			return
		case "chat:error", "rate-limit":
			fmt.Println()
			fail("%s: %s", env.Event, string(env.Data))
		default:
			color.White("(%s %s)", env.Event, string(env.Data))
		}
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:5000/api/v1", "API base URL")
	email := flag.String("email", "smoke@chatedge.local", "account email")
	password := flag.String("password", "smoke-test-pass", "account password")
	message := flag.String("message", "Say hello in one short sentence.", "message to send")
	keep := flag.Bool("keep", false, "keep the chat history afterwards")
	flag.Parse()

	base, err := url.Parse(*baseURL)
	if err != nil {
		fail("Bad URL: %v", err)
	}
	jar, _ := cookiejar.New(nil)
	s := &smoke{base: base, client: &http.Client{Jar: jar, Timeout: 2 * time.Minute}}

	color.Cyan("Starting ChatEdge smoke test against %s\n", base)

	color.Yellow("\n1. Health")
	resp, raw := s.send(http.MethodGet, "/", nil)
	s.expect("health", resp, raw, http.StatusOK)

	color.Yellow("\n2. Signup (or login if the account exists)")
	resp, raw = s.send(http.MethodPost, "/user/signup", map[string]string{
		"name": "Smoke Test", "email": *email, "password": *password,
	})
	if resp.StatusCode == http.StatusUnauthorized {
		resp, raw = s.send(http.MethodPost, "/user/login", map[string]string{"email": *email, "password": *password})
	}
	s.expect("auth", resp, raw, http.StatusCreated, http.StatusOK)

	color.Yellow("\n3. Auth status")
	resp, raw = s.send(http.MethodGet, "/user/auth-status", nil)
	s.expect("auth-status", resp, raw, http.StatusOK)

	color.Yellow("\n4. Streaming chat over WebSocket")
	s.chat(*message)

	color.Yellow("\n5. History")
	resp, raw = s.send(http.MethodGet, "/chat/all-chats", nil)
	s.expect("history", resp, raw, http.StatusOK)

	if !*keep {
		color.Yellow("\n6. Clear history")
		resp, raw = s.send(http.MethodDelete, "/chat/delete", nil)
		s.expect("delete", resp, raw, http.StatusOK)
	}

	color.Yellow("\n7. Logout")
	resp, raw = s.send(http.MethodGet, "/user/logout", nil)
	s.expect("logout", resp, raw, http.StatusOK)

	color.Green("\nSmoke test passed")
}
