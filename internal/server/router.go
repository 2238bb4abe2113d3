package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/vigintitres/scripta/backend/internal/auth"
	"github.com/vigintitres/scripta/backend/internal/images"
	"github.com/vigintitres/scripta/backend/internal/posts"
	"github.com/vigintitres/scripta/backend/internal/quotes"
	"github.com/vigintitres/scripta/backend/internal/users"
	"go.uber.org/zap"
)

const userIDContextKey = "scripta_user_id"

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingUsersService  = errors.New("users service dependency required")
	errMissingPostsService  = errors.New("posts service dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates backend session tokens.
type TokenManager interface {
	Issue(ctx context.Context, userID string) (string, int64, error)
	Validate(token string) (string, error)
}

// GoogleVerifier validates Google ID tokens presented at sign-in.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleClaims, error)
}

// ImageUploader runs a file through the upload pipeline and returns its URL.
type ImageUploader interface {
	Process(ctx context.Context, filename string, data []byte) (string, error)
}

// Dependencies wires the HTTP layer to its collaborating services.
type Dependencies struct {
	TokenManager   TokenManager
	GoogleVerifier GoogleVerifier
	UsersService   *users.Service
	PostsService   *posts.Service
	ImageUploader  ImageUploader
	Realtime       *RealtimeDispatcher
	Logger         *zap.Logger
}

// NewHTTPHandler builds the Gin router for the public site and the admin API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}
	if deps.PostsService == nil {
		return nil, errMissingPostsService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:   deps.TokenManager,
		verifier: deps.GoogleVerifier,
		users:    deps.UsersService,
		posts:    deps.PostsService,
		images:   deps.ImageUploader,
		realtime: deps.Realtime,
		logger:   logger,
	}

	router.GET("/api/posts", handler.handleListPublished)
	router.GET("/api/posts/:id", handler.handleGetPost)
	router.GET("/api/quote", handler.handleQuote)

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/google", handler.handleGoogleAuth)

	admin := router.Group("/admin")
	admin.Use(handler.authorizeRequest)
	admin.GET("/posts", handler.handleListAll)
	admin.POST("/posts", handler.handleCreatePost)
	admin.PUT("/posts/:id", handler.handleUpdatePost)
	admin.DELETE("/posts/:id", handler.handleDeletePost)
	admin.POST("/posts/:id/like", handler.handleToggleLike)
	admin.POST("/images", handler.handleUploadImage)
	admin.GET("/profile", handler.handleGetProfile)
	admin.PUT("/profile", handler.handleUpdateProfile)
	admin.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	tokens   TokenManager
	verifier GoogleVerifier
	users    *users.Service
	posts    *posts.Service
	images   ImageUploader
	realtime *RealtimeDispatcher
	logger   *zap.Logger
}

type sessionResponsePayload struct {
	AccessToken string         `json:"access_token"`
	ExpiresIn   int64          `json:"expires_in"`
	TokenType   string         `json:"token_type"`
	Profile     profilePayload `json:"profile"`
}

type profilePayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Admin       bool   `json:"admin"`
}

func profileToPayload(profile users.Profile) profilePayload {
	return profilePayload{
		ID:          profile.ID,
		Email:       profile.Email,
		Username:    profile.Username,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		Admin:       profile.Admin,
	}
}

type postPayload struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Content          string   `json:"content"`
	Excerpt          string   `json:"excerpt,omitempty"`
	Category         string   `json:"category"`
	Status           string   `json:"status"`
	ImageURL         string   `json:"image_url,omitempty"`
	AuthorID         string   `json:"author_id"`
	AuthorName       string   `json:"author_name"`
	AuthorAvatarURL  string   `json:"author_avatar_url,omitempty"`
	Likes            int      `json:"likes"`
	LikedBy          []string `json:"liked_by"`
	CreatedAtSeconds int64    `json:"created_at_s"`
	UpdatedAtSeconds int64    `json:"updated_at_s"`
}

func postToPayload(post posts.Post) postPayload {
	return postPayload{
		ID:               post.ID,
		Title:            post.Title,
		Content:          post.Content,
		Excerpt:          post.Excerpt,
		Category:         post.Category,
		Status:           post.Status,
		ImageURL:         post.ImageURL,
		AuthorID:         post.AuthorID,
		AuthorName:       post.AuthorName,
		AuthorAvatarURL:  post.AuthorAvatarURL,
		Likes:            post.Likes,
		LikedBy:          post.LikedBy(),
		CreatedAtSeconds: post.CreatedAtSeconds,
		UpdatedAtSeconds: post.UpdatedAtSeconds,
	}
}

func postsToPayload(records []posts.Post) []postPayload {
	payload := make([]postPayload, 0, len(records))
	for _, record := range records {
		payload = append(payload, postToPayload(record))
	}
	return payload
}

type registerRequestPayload struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Username        string `json:"username"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := auth.ValidatePassword(request.Password, request.ConfirmPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_password", "message": err.Error()})
		return
	}

	profile, err := h.users.Register(c.Request.Context(), request.Email, request.Password, request.Username)
	if errors.Is(err, users.ErrEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": "email_taken"})
		return
	}
	if err != nil {
		h.logger.Error("registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration_failed"})
		return
	}

	h.respondWithSession(c, profile)
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	profile, err := h.users.Authenticate(c.Request.Context(), request.Email, request.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	h.respondWithSession(c, profile)
}

type googleAuthRequestPayload struct {
	IDToken string `json:"id_token"`
}

func (h *httpHandler) handleGoogleAuth(c *gin.Context) {
	if h.verifier == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "google_auth_disabled"})
		return
	}

	var request googleAuthRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("google token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	profile, err := h.users.EnsureProfile(c.Request.Context(), users.SignInIdentity{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
	})
	if err != nil {
		h.logger.Error("profile merge failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign_in_failed"})
		return
	}

	h.respondWithSession(c, profile)
}

func (h *httpHandler) respondWithSession(c *gin.Context, profile users.Profile) {
	token, expiresIn, err := h.tokens.Issue(c.Request.Context(), profile.ID)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(http.StatusOK, sessionResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		Profile:     profileToPayload(profile),
	})
}

func (h *httpHandler) handleListPublished(c *gin.Context) {
	records, err := h.posts.ListPublished(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": postsToPayload(records)})
}

func (h *httpHandler) handleGetPost(c *gin.Context) {
	id, err := posts.NewPostID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_post_id"})
		return
	}

	record, err := h.posts.Get(c.Request.Context(), id)
	if errors.Is(err, posts.ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get_failed"})
		return
	}

	// Drafts are invisible to anonymous readers.
	if record.Status != string(posts.StatusPublished) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
		return
	}
	c.JSON(http.StatusOK, postToPayload(record))
}

func (h *httpHandler) handleQuote(c *gin.Context) {
	c.JSON(http.StatusOK, quotes.Random())
}

func (h *httpHandler) handleListAll(c *gin.Context) {
	records, err := h.posts.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": postsToPayload(records)})
}

type postRequestPayload struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Excerpt  string `json:"excerpt"`
	Category string `json:"category"`
	Status   string `json:"status"`
	ImageURL string `json:"image_url"`
}

func (h *httpHandler) bindDraft(c *gin.Context) (posts.Draft, bool) {
	var request postRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return posts.Draft{}, false
	}

	category, err := posts.ParseCategory(request.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_category"})
		return posts.Draft{}, false
	}
	status, err := posts.ParseStatus(request.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return posts.Draft{}, false
	}

	return posts.Draft{
		Title:    request.Title,
		Content:  request.Content,
		Excerpt:  request.Excerpt,
		Category: category,
		Status:   status,
		ImageURL: request.ImageURL,
	}, true
}

func (h *httpHandler) currentAuthor(c *gin.Context) (posts.Author, bool) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return posts.Author{}, false
	}
	profile, err := h.users.Get(c.Request.Context(), userID)
	if errors.Is(err, users.ErrProfileNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return posts.Author{}, false
	}
	if err != nil {
		h.logger.Error("failed to load profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile_load_failed"})
		return posts.Author{}, false
	}
	return posts.Author{
		ID:        profile.ID,
		Name:      profile.DisplayName,
		AvatarURL: profile.AvatarURL,
	}, true
}

func (h *httpHandler) handleCreatePost(c *gin.Context) {
	author, ok := h.currentAuthor(c)
	if !ok {
		return
	}
	draft, ok := h.bindDraft(c)
	if !ok {
		return
	}

	record, err := h.posts.Create(c.Request.Context(), author, draft)
	if !h.respondPostMutationError(c, err) {
		return
	}

	h.publishChange(record.ID)
	c.JSON(http.StatusCreated, postToPayload(record))
}

func (h *httpHandler) handleUpdatePost(c *gin.Context) {
	author, ok := h.currentAuthor(c)
	if !ok {
		return
	}
	id, err := posts.NewPostID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_post_id"})
		return
	}
	draft, ok := h.bindDraft(c)
	if !ok {
		return
	}

	record, err := h.posts.Update(c.Request.Context(), author, id, draft)
	if !h.respondPostMutationError(c, err) {
		return
	}

	h.publishChange(record.ID)
	c.JSON(http.StatusOK, postToPayload(record))
}

func (h *httpHandler) handleDeletePost(c *gin.Context) {
	author, ok := h.currentAuthor(c)
	if !ok {
		return
	}
	id, err := posts.NewPostID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_post_id"})
		return
	}

	if !h.respondPostMutationError(c, h.posts.Delete(c.Request.Context(), author, id)) {
		return
	}

	h.publishChange(id.String())
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleToggleLike(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, err := posts.NewPostID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_post_id"})
		return
	}

	record, err := h.posts.ToggleLike(c.Request.Context(), userID, id)
	if !h.respondPostMutationError(c, err) {
		return
	}

	h.publishChange(record.ID)
	c.JSON(http.StatusOK, postToPayload(record))
}

// respondPostMutationError writes the error response for a failed post
// mutation and reports whether the caller may proceed.
func (h *httpHandler) respondPostMutationError(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, posts.ErrAuthorRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, posts.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
	case errors.Is(err, posts.ErrEmptyTitle), errors.Is(err, posts.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": err.Error()})
	default:
		h.logger.Error("post mutation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation_failed"})
	}
	return false
}

func (h *httpHandler) handleUploadImage(c *gin.Context) {
	if h.images == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "image_upload_disabled"})
		return
	}
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	imageURL, err := h.images.Process(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		if errors.Is(err, images.ErrUnsupportedImageType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_image_type"})
			return
		}
		h.logger.Error("image upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"image_url": imageURL})
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	profile, err := h.users.Get(c.Request.Context(), userID)
	if errors.Is(err, users.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile_load_failed"})
		return
	}
	c.JSON(http.StatusOK, profileToPayload(profile))
}

type updateProfileRequestPayload struct {
	DisplayName string `json:"display_name"`
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var request updateProfileRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.DisplayName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	userID := c.GetString(userIDContextKey)
	profile, err := h.users.UpdateDisplayName(c.Request.Context(), userID, request.DisplayName)
	if errors.Is(err, users.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to update profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile_update_failed"})
		return
	}
	c.JSON(http.StatusOK, profileToPayload(profile))
}

func (h *httpHandler) handleEvents(c *gin.Context) {
	if h.realtime == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "events_disabled"})
		return
	}

	stream, cleanup := h.realtime.Subscribe(c.Request.Context())
	defer cleanup()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, gin.H{
				"post_id":   message.PostID,
				"timestamp": message.Timestamp.UTC().Format(time.RFC3339),
			})
			return true
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *httpHandler) publishChange(postID string) {
	if h.realtime == nil {
		return
	}
	h.realtime.Publish(RealtimeMessage{
		EventType: RealtimeEventPostChanged,
		PostID:    postID,
		Timestamp: time.Now().UTC(),
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.Validate(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}
