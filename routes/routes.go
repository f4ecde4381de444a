package routes

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"eventreg/admin"
	"eventreg/middlewares"
	"eventreg/models"
	"eventreg/registration"
	"eventreg/utils"
	"eventreg/validation"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Deps is everything the HTTP layer needs from main.
type Deps struct {
	Users        models.UserRepository
	Registration *registration.Service
	Admin        *admin.Facade
	Tokens       *utils.Tokens
	Redis        *redis.Client
	CacheTTL     time.Duration
	SubmitQuota  int
	Location     *time.Location
	Log          *zap.Logger
}

type deps struct {
	users  models.UserRepository
	reg    *registration.Service
	admin  *admin.Facade
	tokens *utils.Tokens
	log    *zap.Logger
}

// RegisterRoutes mounts the public form, the login endpoint and the admin API.
// It returns the rate limiters it started so the caller can stop their sweepers.
func RegisterRoutes(server *gin.Engine, in Deps) []*middlewares.RateLimiter {
	if in.Log == nil {
		in.Log = zap.NewNop()
	}
	if in.Location == nil {
		in.Location = time.UTC
	}
	if in.CacheTTL <= 0 {
		in.CacheTTL = 30 * time.Second
	}
	if in.SubmitQuota <= 0 {
		in.SubmitQuota = 50
	}
	d := &deps{
		users:  in.Users,
		reg:    in.Registration,
		admin:  in.Admin,
		tokens: in.Tokens,
		log:    in.Log,
	}

	server.SetHTMLTemplate(template.Must(template.New("").ParseFS(templatesFS, "templates/*.html")))

	globalLimiter := middlewares.NewRateLimiter(middlewares.LimiterConfig{RPS: 20, Burst: 40, IdleTTL: 3 * time.Minute})
	server.Use(globalLimiter.Middleware(middlewares.ByIP("ip")))

	// cached public reads
	cache := middlewares.ResponseCache(in.Redis, in.CacheTTL, in.Log)
	server.GET("/", cache, d.showForm)
	server.GET("/registration/options", cache, d.getOptions)

	submitLimiter := middlewares.NewRateLimiter(middlewares.LimiterConfig{RPS: 0.2, Burst: 5, IdleTTL: 10 * time.Minute})
	server.POST("/registrations",
		submitLimiter.Middleware(middlewares.ByIP("submit")),
		middlewares.Quota(in.Redis, middlewares.QuotaRule{
			Limit:  in.SubmitQuota,
			Window: 24 * time.Hour,
			KeyFn:  middlewares.SubmissionQuotaKey(in.Location),
		}),
		d.submitRegistration,
	)

	authLimiter := middlewares.NewRateLimiter(middlewares.LimiterConfig{RPS: 0.5, Burst: 2, IdleTTL: 10 * time.Minute})
	server.POST("/login", authLimiter.Middleware(middlewares.ByIP("login")), d.login)

	adm := server.Group("/admin")
	adm.Use(middlewares.Authenticate(in.Tokens))

	adm.GET("/categories", d.getCategories)
	adm.GET("/events", d.getEvents)
	adm.POST("/events", d.createEvent)
	adm.GET("/events/:id", d.getEvent)
	adm.PUT("/events/:id", d.updateEvent)
	adm.DELETE("/events/:id", d.deleteEvent)
	adm.GET("/events/:id/count", d.countForEvent)

	adm.GET("/registrations", d.listRegistrations)
	adm.GET("/registrations/export", d.exportRegistrations)
	adm.GET("/registrations/count", d.countForDate)
	adm.DELETE("/registrations/:id", d.deleteRegistration)

	adm.GET("/settings", d.getSettings)
	adm.PUT("/settings", d.updateSettings)

	return []*middlewares.RateLimiter{globalLimiter, submitLimiter, authLimiter}
}

// fail maps service errors onto responses. msg is shown for unexpected failures.
func (d *deps) fail(c *gin.Context, err error, msg string) {
	var fe validation.FieldErrors
	switch {
	case errors.As(err, &fe):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": fe})
	case errors.Is(err, registration.ErrRegistrationClosed):
		c.JSON(http.StatusForbidden, gin.H{"message": "Registration is currently closed."})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found."})
	case errors.Is(err, models.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"message": "A registrant of this event already holds a registration on that date."})
	default:
		_ = c.Error(err)
		d.log.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msg})
	}
}

/* --------------------- Auth --------------------- */

// POST /login
func (d *deps) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" form:"email" binding:"required"`
		Password string `json:"password" form:"password" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Could not parse request data."})
		return
	}

	user, err := d.users.ValidateCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, models.ErrInvalidCredentials) {
			d.log.Error("login lookup failed", zap.Error(err))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Could not authenticate user."})
		return
	}

	token, err := d.tokens.GenerateToken(user.Email, user.ID)
	if err != nil {
		d.fail(c, err, "Could not authenticate user.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful!", "token": token})
}
