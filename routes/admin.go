package routes

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"eventreg/models"
	"eventreg/validation"
)

/* -------------------- Events -------------------- */

// GET /admin/categories
func (d *deps) getCategories(c *gin.Context) {
	c.JSON(http.StatusOK, models.KnownCategories)
}

// GET /admin/events
func (d *deps) getEvents(c *gin.Context) {
	events, err := d.admin.EventSummaries(c.Request.Context())
	if err != nil {
		d.fail(c, err, "Could not fetch events. Try again later.")
		return
	}
	c.JSON(http.StatusOK, events)
}

// GET /admin/events/:id
func (d *deps) getEvent(c *gin.Context) {
	event, err := d.admin.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		d.fail(c, err, "Could not fetch event. Try again later.")
		return
	}
	c.JSON(http.StatusOK, event)
}

// POST /admin/events
func (d *deps) createEvent(c *gin.Context) {
	var event models.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Could not parse request data."})
		return
	}
	created, err := d.admin.CreateEvent(c.Request.Context(), event)
	if err != nil {
		d.fail(c, err, "Could not create event. Try again later.")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Event created!", "event": created})
}

// PUT /admin/events/:id
func (d *deps) updateEvent(c *gin.Context) {
	var event models.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Could not parse request data."})
		return
	}
	updated, err := d.admin.UpdateEvent(c.Request.Context(), c.Param("id"), event)
	if err != nil {
		d.fail(c, err, "Could not update event. Try again later.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event updated successfully!", "event": updated})
}

// DELETE /admin/events/:id
func (d *deps) deleteEvent(c *gin.Context) {
	if err := d.admin.DeleteEvent(c.Request.Context(), c.Param("id")); err != nil {
		d.fail(c, err, "Could not delete the event.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully!"})
}

// GET /admin/events/:id/count
func (d *deps) countForEvent(c *gin.Context) {
	id := c.Param("id")
	n, err := d.admin.CountForEvent(c.Request.Context(), id)
	if err != nil {
		d.fail(c, err, "Could not count registrations.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"eventId": id, "count": n})
}

/* --------------- Registrations ------------------ */

// GET /admin/registrations
func (d *deps) listRegistrations(c *gin.Context) {
	var f models.RegistrationFilter
	_ = c.ShouldBindQuery(&f)

	res, err := d.admin.Query(c.Request.Context(), f)
	if err != nil {
		d.fail(c, err, "Could not fetch registrations. Try again later.")
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /admin/registrations/export
func (d *deps) exportRegistrations(c *gin.Context) {
	var f models.RegistrationFilter
	_ = c.ShouldBindQuery(&f)

	var buf bytes.Buffer
	name, err := d.admin.Export(c.Request.Context(), &buf, f, time.Now())
	if err != nil {
		d.fail(c, err, "Could not export registrations.")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// GET /admin/registrations/count?eventDate=YYYY-MM-DD
func (d *deps) countForDate(c *gin.Context) {
	date := c.Query("eventDate")
	if !validation.IsDate(date) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "eventDate must be a date as YYYY-MM-DD."})
		return
	}
	n, err := d.admin.CountForDate(c.Request.Context(), date)
	if err != nil {
		d.fail(c, err, "Could not count registrations.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"eventDate": date, "count": n})
}

// DELETE /admin/registrations/:id
func (d *deps) deleteRegistration(c *gin.Context) {
	if err := d.admin.DeleteRegistration(c.Request.Context(), c.Param("id")); err != nil {
		d.fail(c, err, "Could not delete the registration.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Registration deleted."})
}

/* ------------------- Settings ------------------- */

// GET /admin/settings
func (d *deps) getSettings(c *gin.Context) {
	s, err := d.admin.Settings(c.Request.Context())
	if err != nil {
		d.fail(c, err, "Could not load settings.")
		return
	}
	c.JSON(http.StatusOK, s)
}

// PUT /admin/settings
func (d *deps) updateSettings(c *gin.Context) {
	var s models.Settings
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Could not parse request data."})
		return
	}
	saved, err := d.admin.SaveSettings(c.Request.Context(), s)
	if err != nil {
		d.fail(c, err, "Could not save settings.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Settings saved.", "settings": saved})
}
