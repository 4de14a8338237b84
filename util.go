package main

import (
	"fmt"
	"strconv"

	"github.com/valyala/fasthttp"
)

// getPlayerID parses the :id route parameter. Ids are positive and fit
// the 32 bit owner column.
func getPlayerID(ctx *fasthttp.RequestCtx) (uint32, error) {
	raw, _ := ctx.UserValue("id").(string)
	if len(raw) == 0 || len(raw) > 10 {
		return 0, fmt.Errorf("id is not in range 1~10 digits")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("failed to parse id: %w", err)
	}
	if id == 0 {
		return 0, fmt.Errorf("0 is not a valid player id")
	}
	return uint32(id), nil
}
