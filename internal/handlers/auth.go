package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"consult-platform/internal/middleware"
	"consult-platform/internal/models"
	"consult-platform/internal/repo"
	"consult-platform/pkg/logger"
)

type AuthHandler struct {
	Accounts  *repo.Accounts
	JwtSecret string
}

func NewAuthHandler(accounts *repo.Accounts, jwtSecret string) *AuthHandler {
	return &AuthHandler{Accounts: accounts, JwtSecret: jwtSecret}
}

type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	DisplayName     string `json:"display_name" binding:"required"`
	IsCreator       bool   `json:"is_creator"`
	RatePerMinute   int64  `json:"rate_per_minute" binding:"gte=0"`
	MinuteIncrement int64  `json:"minute_increment" binding:"gte=0"`
	CurrencyCode    string `json:"currency_code"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if req.IsCreator && req.RatePerMinute > 0 && req.MinuteIncrement <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Creators with a rate need a positive minute increment."})
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Errorf("password hashing error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error, please try again."})
		return
	}

	increment := req.MinuteIncrement
	if increment == 0 {
		increment = 5
	}
	code := req.CurrencyCode
	if code == "" {
		code = "IDR"
	}

	acct := models.Account{
		ID:              uuid.NewString(),
		Email:           req.Email,
		PasswordHash:    string(passwordHash),
		DisplayName:     req.DisplayName,
		IsCreator:       req.IsCreator,
		RatePerMinute:   req.RatePerMinute,
		MinuteIncrement: increment,
		CurrencyCode:    code,
		CreatedAt:       time.Now(),
	}

	if err := h.Accounts.Create(c.Request.Context(), acct); err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already in use."})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "Account created successfully.",
		"account_id": acct.ID,
		"email":      acct.Email,
	})
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) createJWT(acct models.Account) (string, error) {
	claims := jwt.MapClaims{
		"sub":   acct.ID,
		"email": acct.Email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour * 24 * 7).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.JwtSecret))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	acct, err := h.Accounts.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repo.ErrAccountNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password."})
			return
		}
		writeError(c, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password."})
		return
	}

	tokenString, err := h.createJWT(acct)
	if err != nil {
		logger.Errorf("failed to create JWT: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Login successful.", "token": tokenString})
}

// GetMe returns the authenticated account's profile.
func (h *AuthHandler) GetMe(c *gin.Context) {
	acct, err := h.Accounts.Get(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}
