package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"eventreg/eligibility"
	"eventreg/models"
	"eventreg/registration"
	"eventreg/validation"
)

type formPage struct {
	Options eligibility.Options
	Values  validation.Submission
	Errors  validation.FieldErrors
	Success *models.RegistrationWithEvent
	Message string
}

// GET /
func (d *deps) showForm(c *gin.Context) {
	var f eligibility.Filters
	_ = c.ShouldBindQuery(&f)

	opts, err := d.reg.Options(c.Request.Context(), f)
	if err != nil {
		d.fail(c, err, "Could not load events. Try again later.")
		return
	}
	c.HTML(http.StatusOK, "form.html", formPage{
		Options: opts,
		Values:  validation.Submission{Category: opts.Filters.Category, EventDate: opts.Filters.EventDate},
	})
}

// GET /registration/options
func (d *deps) getOptions(c *gin.Context) {
	var f eligibility.Filters
	_ = c.ShouldBindQuery(&f)

	opts, err := d.reg.Options(c.Request.Context(), f)
	if err != nil {
		d.fail(c, err, "Could not load events. Try again later.")
		return
	}
	c.JSON(http.StatusOK, opts)
}

// POST /registrations accepts JSON or a browser form post. Browser posts get
// the form page back; everything else gets JSON.
func (d *deps) submitRegistration(c *gin.Context) {
	var sub validation.Submission
	if err := c.ShouldBind(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Could not parse request data."})
		return
	}

	out, err := d.reg.Submit(c.Request.Context(), sub)
	if c.ContentType() == "application/x-www-form-urlencoded" {
		d.renderSubmission(c, sub, out, err)
		return
	}
	if err != nil {
		d.fail(c, err, "Could not save registration. Try again later.")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Registered!", "registration": out})
}

func (d *deps) renderSubmission(c *gin.Context, sub validation.Submission, out models.RegistrationWithEvent, err error) {
	ctx := c.Request.Context()
	page := formPage{Values: sub.Trimmed()}
	status := http.StatusCreated

	var fe validation.FieldErrors
	switch {
	case err == nil:
		page.Success = &out
		page.Values = validation.Submission{}
	case errors.As(err, &fe):
		status = http.StatusUnprocessableEntity
		page.Errors = fe
	case errors.Is(err, registration.ErrRegistrationClosed):
		status = http.StatusForbidden
	default:
		d.fail(c, err, "Could not save registration. Try again later.")
		return
	}

	opts, oerr := d.reg.Options(ctx, eligibility.Filters{Category: page.Values.Category, EventDate: page.Values.EventDate})
	if oerr != nil {
		d.fail(c, oerr, "Could not load events. Try again later.")
		return
	}
	page.Options = opts
	c.HTML(status, "form.html", page)
}
