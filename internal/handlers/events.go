package handlers

import (
	"net/http"

	"rpctail/internal/filter"

	"github.com/gin-gonic/gin"
)

const errOutcomeInvalid = "invalid 'outcome'; use success, error or empty"

// criteriaFromQuery overlays query parameters on base. A parameter that is
// present, even empty, replaces the base value.
func criteriaFromQuery(c *gin.Context, base filter.Criteria) (filter.Criteria, error) {
	crit := base
	if s, ok := c.GetQuery("search"); ok {
		crit.Search = s
	}
	if n, ok := c.GetQuery("network"); ok {
		crit.Network = n
	}
	if o, ok := c.GetQuery("outcome"); ok {
		outcome, err := filter.ParseOutcome(o)
		if err != nil {
			return filter.Criteria{}, err
		}
		crit.Outcome = outcome
	}
	return crit.Normalize(), nil
}

// @Summary      List visible events
// @Description  Applies ad-hoc criteria to the current window without changing the engine's criteria. Omitted parameters fall back to the engine's criteria. Newest first.
// @Tags         view
// @Produce      json
// @Param        search   query  string  false  "Case-insensitive match on method, request id or network"  example(eth_blockNumber)
// @Param        network  query  string  false  "Exact network slug"  example(eth-mainnet)
// @Param        outcome  query  string  false  "Outcome"  Enums(success,error)
// @Success      200  {object}  map[string]interface{}  "count, total, criteria, events"
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/events [get]
func (h *Handler) getEvents(c *gin.Context) {
	v := h.tail.View()
	crit, err := criteriaFromQuery(c, v.Criteria)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errOutcomeInvalid})
		return
	}
	events := filter.Apply(v.Events, crit)
	c.JSON(http.StatusOK, gin.H{
		"count":    len(events),
		"total":    len(v.Events),
		"criteria": crit,
		"events":   events,
	})
}
