package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vigintitres/scripta/backend/internal/auth"
	"github.com/vigintitres/scripta/backend/internal/database"
	"github.com/vigintitres/scripta/backend/internal/posts"
	"github.com/vigintitres/scripta/backend/internal/server"
	"github.com/vigintitres/scripta/backend/internal/users"
	"go.uber.org/zap"
)

const (
	signingSecret   = "integration-secret"
	authorEmail     = "author@example.com"
	authorPassword  = "sturdy-pass"
	jsonContentType = "application/json"
)

type sessionPayload struct {
	AccessToken string `json:"access_token"`
	Profile     struct {
		ID          string `json:"id"`
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		Admin       bool   `json:"admin"`
	} `json:"profile"`
}

type postPayload struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Content          string   `json:"content"`
	Category         string   `json:"category"`
	Status           string   `json:"status"`
	AuthorID         string   `json:"author_id"`
	AuthorName       string   `json:"author_name"`
	Likes            int      `json:"likes"`
	LikedBy          []string `json:"liked_by"`
	CreatedAtSeconds int64    `json:"created_at_s"`
	UpdatedAtSeconds int64    `json:"updated_at_s"`
}

func TestAuthAndPostLifecycle(testContext *testing.T) {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:scripta_integration_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := database.OpenSQLite(dsn, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	usersService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		IDProvider: posts.NewUUIDProvider(),
	})
	if err != nil {
		testContext.Fatalf("failed to build users service: %v", err)
	}
	postsService, err := posts.NewService(posts.ServiceConfig{
		Database:   db,
		IDProvider: posts.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build posts service: %v", err)
	}
	tokens := auth.NewTokenManager(auth.TokenManagerConfig{
		SigningSecret: []byte(signingSecret),
		Issuer:        "scripta-auth",
		Audience:      "scripta-api",
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager: tokens,
		UsersService: usersService,
		PostsService: postsService,
		Realtime:     server.NewRealtimeDispatcher(),
		Logger:       zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	// Register, then sign in again with the same credentials.
	registerBody, _ := json.Marshal(map[string]string{
		"email":            authorEmail,
		"password":         authorPassword,
		"confirm_password": authorPassword,
	})
	registerResp, err := http.Post(testServer.URL+"/auth/register", jsonContentType, bytes.NewReader(registerBody))
	if err != nil {
		testContext.Fatalf("register request failed: %v", err)
	}
	defer registerResp.Body.Close()
	if registerResp.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected register status: %d", registerResp.StatusCode)
	}

	loginBody, _ := json.Marshal(map[string]string{
		"email":    authorEmail,
		"password": authorPassword,
	})
	loginResp, err := http.Post(testServer.URL+"/auth/login", jsonContentType, bytes.NewReader(loginBody))
	if err != nil {
		testContext.Fatalf("login request failed: %v", err)
	}
	defer loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected login status: %d", loginResp.StatusCode)
	}
	var session sessionPayload
	if err := json.NewDecoder(loginResp.Body).Decode(&session); err != nil {
		testContext.Fatalf("failed to decode session: %v", err)
	}
	if session.AccessToken == "" || session.Profile.ID == "" {
		testContext.Fatalf("incomplete session payload: %+v", session)
	}

	authorized := func(method, path string, body []byte) *http.Response {
		var reader *bytes.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		} else {
			reader = bytes.NewReader(nil)
		}
		request, err := http.NewRequest(method, testServer.URL+path, reader)
		if err != nil {
			testContext.Fatalf("failed to build request: %v", err)
		}
		request.Header.Set("Content-Type", jsonContentType)
		request.Header.Set("Authorization", "Bearer "+session.AccessToken)
		response, err := http.DefaultClient.Do(request)
		if err != nil {
			testContext.Fatalf("%s %s failed: %v", method, path, err)
		}
		return response
	}

	// Publish a post. Category and status are omitted and must default.
	createBody, _ := json.Marshal(map[string]string{
		"title":   "Leaves Falling",
		"content": "The courtyard is covered again.",
		"excerpt": "Autumn notes.",
	})
	createResp := authorized(http.MethodPost, "/admin/posts", createBody)
	defer createResp.Body.Close()
	if createResp.StatusCode != http.StatusCreated {
		testContext.Fatalf("unexpected create status: %d", createResp.StatusCode)
	}
	var created postPayload
	if err := json.NewDecoder(createResp.Body).Decode(&created); err != nil {
		testContext.Fatalf("failed to decode created post: %v", err)
	}
	if created.Category != "journal" || created.Status != "published" {
		testContext.Fatalf("expected defaulted enums, got %q/%q", created.Category, created.Status)
	}
	if created.AuthorID != session.Profile.ID {
		testContext.Fatalf("author id mismatch: %q vs %q", created.AuthorID, session.Profile.ID)
	}
	if created.Likes != 0 || len(created.LikedBy) != 0 {
		testContext.Fatalf("new post must start without likes, got %d/%v", created.Likes, created.LikedBy)
	}
	if created.CreatedAtSeconds == 0 {
		testContext.Fatalf("expected server-assigned creation timestamp")
	}

	// The published post is visible anonymously.
	listResp, err := http.Get(testServer.URL + "/api/posts")
	if err != nil {
		testContext.Fatalf("list request failed: %v", err)
	}
	defer listResp.Body.Close()
	var listing struct {
		Posts []postPayload `json:"posts"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&listing); err != nil {
		testContext.Fatalf("failed to decode listing: %v", err)
	}
	if len(listing.Posts) != 1 || listing.Posts[0].ID != created.ID {
		testContext.Fatalf("expected the published post in the listing, got %+v", listing.Posts)
	}

	// Edit the post. The identifier survives and the update time moves.
	updateBody, _ := json.Marshal(map[string]string{
		"title":   "Leaves Falling",
		"content": "The courtyard is covered again, deeper this time.",
		"excerpt": "Autumn notes.",
	})
	updateResp := authorized(http.MethodPut, "/admin/posts/"+created.ID, updateBody)
	defer updateResp.Body.Close()
	if updateResp.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected update status: %d", updateResp.StatusCode)
	}
	var updated postPayload
	if err := json.NewDecoder(updateResp.Body).Decode(&updated); err != nil {
		testContext.Fatalf("failed to decode updated post: %v", err)
	}
	if updated.ID != created.ID {
		testContext.Fatalf("update must keep the identifier, got %q", updated.ID)
	}
	if updated.Content == created.Content {
		testContext.Fatalf("expected content replaced")
	}

	// Like, then unlike.
	likeResp := authorized(http.MethodPost, "/admin/posts/"+created.ID+"/like", nil)
	defer likeResp.Body.Close()
	var liked postPayload
	if err := json.NewDecoder(likeResp.Body).Decode(&liked); err != nil {
		testContext.Fatalf("failed to decode liked post: %v", err)
	}
	if liked.Likes != 1 || len(liked.LikedBy) != 1 || liked.LikedBy[0] != session.Profile.ID {
		testContext.Fatalf("expected caller in liker set, got %+v", liked)
	}

	unlikeResp := authorized(http.MethodPost, "/admin/posts/"+created.ID+"/like", nil)
	defer unlikeResp.Body.Close()
	var unliked postPayload
	if err := json.NewDecoder(unlikeResp.Body).Decode(&unliked); err != nil {
		testContext.Fatalf("failed to decode unliked post: %v", err)
	}
	if unliked.Likes != 0 || len(unliked.LikedBy) != 0 {
		testContext.Fatalf("expected caller removed from liker set, got %+v", unliked)
	}

	// Delete, then confirm the public detail endpoint reports 404.
	deleteResp := authorized(http.MethodDelete, "/admin/posts/"+created.ID, nil)
	deleteResp.Body.Close()
	if deleteResp.StatusCode != http.StatusNoContent {
		testContext.Fatalf("unexpected delete status: %d", deleteResp.StatusCode)
	}

	getResp, err := http.Get(testServer.URL + "/api/posts/" + created.ID)
	if err != nil {
		testContext.Fatalf("get request failed: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		testContext.Fatalf("expected 404 after deletion, got %d", getResp.StatusCode)
	}
}
