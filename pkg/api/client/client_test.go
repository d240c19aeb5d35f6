package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewNormalisesBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                         DefaultBaseURL,
		"api.example.com/":         "http://api.example.com",
		" https://api.example.com": "https://api.example.com",
	}
	for in, want := range cases {
		cli, err := New(in)
		if err != nil {
			t.Fatalf("New(%q): %v", in, err)
		}
		if cli.BaseURL() != want {
			t.Fatalf("New(%q) base = %q, want %q", in, cli.BaseURL(), want)
		}
	}
}

func TestLoginAndProfileSendToken(t *testing.T) {
	var seenAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/users/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid email or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"_id":"u1","name":"Ada","email":"ada@example.com","token":"tok"}`))
	})
	mux.HandleFunc("/users/profile", func(w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"_id":"u1","name":"Ada","email":"ada@example.com"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cli, err := New(server.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = cli.Login(context.Background(), "ada@example.com", "wrong")
	var apiErr APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Invalid email or password" {
		t.Fatalf("expected api error, got %v", err)
	}

	session, err := cli.Login(context.Background(), "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if diff := cmp.Diff(Session{ID: "u1", Name: "Ada", Email: "ada@example.com", Token: "tok"}, session); diff != "" {
		t.Fatalf("unexpected session (-want +got):\n%s", diff)
	}

	authed, err := New(server.URL, WithToken(session.Token))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	user, err := authed.Profile(context.Background())
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if user.Email != "ada@example.com" || seenAuth != "Bearer tok" {
		t.Fatalf("unexpected profile %+v with auth %q", user, seenAuth)
	}
}

func TestItemsUnwrapEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"count":1,"data":[{"_id":"i1","name":"Pen","price":1.5,"category":"other"}]}`))
	})
	mux.HandleFunc("POST /items", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["quantity"]; ok {
			t.Errorf("unset fields must be omitted: %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"_id":"i2","name":"Pen","price":1.5}}`))
	})
	mux.HandleFunc("DELETE /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "i1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Item not found with id of ` + r.PathValue("id") + `"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cli, err := New(server.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	items, err := cli.ListItems(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != "i1" || items[0].Price != 1.5 {
		t.Fatalf("unexpected items %+v", items)
	}

	name, price := "Pen", 1.5
	created, err := cli.CreateItem(ctx, ItemInput{Name: &name, Price: &price})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "i2" {
		t.Fatalf("unexpected created item %+v", created)
	}

	if err := cli.DeleteItem(ctx, "i1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = cli.DeleteItem(ctx, "missing")
	var apiErr APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Item not found with id of missing" {
		t.Fatalf("expected not found api error, got %v", err)
	}
}
