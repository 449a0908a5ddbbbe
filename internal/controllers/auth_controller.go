package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/services"
)

var nowUTC = func() time.Time { return time.Now().UTC() }

type signupInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

func (in signupInput) toService() services.RegisterInput {
	return services.RegisterInput{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
		Phone:    in.Phone,
		Role:     in.Role,
	}
}

func (ctl *Controller) SignupUser(c *gin.Context) {
	var input signupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := ctl.Auth.Register(c.Request.Context(), input.toService())
	if err != nil {
		respondError(c, err)
		return
	}
	ctl.issueToken(c, http.StatusCreated, user)
}

func (ctl *Controller) LoginUser(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := ctl.Auth.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, services.ErrAuthorization) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	ctl.issueToken(c, http.StatusOK, user)
}

func (ctl *Controller) issueToken(c *gin.Context, status int, user *models.User) {
	token, err := ctl.Tokens.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}
	c.JSON(status, gin.H{
		"token": token,
		"user":  user,
	})
}
