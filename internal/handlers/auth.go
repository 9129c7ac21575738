package handlers

import (
	"net/http"

	"lakra-backend/internal/middleware"
	"lakra-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type RegisterRequest struct {
	Email             string   `json:"email" binding:"required,email" example:"annotator@example.com"`
	Username          string   `json:"username" binding:"required,min=3,max=100" example:"annotator1"`
	Password          string   `json:"password" binding:"required,min=6" example:"password123"`
	FirstName         string   `json:"first_name"`
	LastName          string   `json:"last_name"`
	PreferredLanguage string   `json:"preferred_language" example:"tagalog"`
	Languages         []string `json:"languages"`
}

type LoginRequest struct {
	Email    string `json:"email" example:"annotator@example.com"`
	Username string `json:"username" example:"annotator1"`
	Password string `json:"password" binding:"required" example:"password123"`
}

type ProfileRequest struct {
	FirstName         *string   `json:"first_name"`
	LastName          *string   `json:"last_name"`
	PreferredLanguage *string   `json:"preferred_language"`
	Languages         *[]string `json:"languages"`
}

// Register godoc
// @Summary      Register a new annotator
// @Description  Create an account and return a JWT token. New accounts start with onboarding pending.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration data"
// @Success      201 {object} services.AuthResult
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.authService.Register(c.Request.Context(), services.RegisterInput{
		Email:             req.Email,
		Username:          req.Username,
		Password:          req.Password,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		PreferredLanguage: req.PreferredLanguage,
		Languages:         req.Languages,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

// Login godoc
// @Summary      Log in
// @Description  Authenticate with email or username and return a JWT token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login data"
// @Success      200 {object} services.AuthResult
// @Failure      401 {object} ErrorResponse
// @Router       /api/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	identifier := req.Email
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "email or username is required", Kind: string(services.KindValidation)})
		return
	}

	res, err := h.authService.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Me godoc
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} User
// @Router       /api/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.Principal(c))
}

// MarkGuidelinesSeen godoc
// @Summary      Mark annotation guidelines as seen
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} User
// @Router       /api/me/guidelines-seen [put]
func (h *AuthHandler) MarkGuidelinesSeen(c *gin.Context) {
	user, err := h.authService.MarkGuidelinesSeen(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile godoc
// @Summary      Update own profile
// @Description  Only sent fields change. Proficiency results stay for languages that remain declared.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ProfileRequest true "Profile fields"
// @Success      200 {object} User
// @Failure      400 {object} ErrorResponse
// @Router       /api/me/profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), currentUserID(c), services.ProfilePatch{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		PreferredLanguage: req.PreferredLanguage,
		Languages:         req.Languages,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
