package production

import (
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/auth"
	"packhouse-backend/internal/lifecycle"

	"github.com/gofiber/fiber/v2"
)

func newApp(svc *Service) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.Render})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxEnterpriseIDKey, scope.EnterpriseID)
		c.Locals(auth.CtxUserIDKey, scope.UserID)
		c.Locals(auth.CtxUserNameKey, scope.UserName)
		return c.Next()
	})
	app.Post("/batches", CreateBatchHandler(svc))
	app.Post("/lots/from-batch/:batchId", CreateLotsHandler(svc))
	app.Post("/batches/:batchId/close", TransitionHandler(svc, lifecycle.EventClose))
	return app
}

func send(t *testing.T, app *fiber.App, path, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode
}

func TestLotsFromBatchEndpoint(t *testing.T) {
	svc, _, box := newService(t)
	app := newApp(svc)

	var created struct {
		Batch struct {
			ID uint `json:"id"`
		} `json:"batch"`
	}
	if code := send(t, app, "/batches", `{"fruit_type":"apple","gross_weight_kg":1000}`, &created); code != fiber.StatusCreated {
		t.Fatalf("create batch = %d", code)
	}
	path := "/lots/from-batch/" + itoa(created.Batch.ID)

	var errBody map[string]any
	if code := send(t, app, path, `[{"box_size_id":1}]`, &errBody); code != fiber.StatusBadRequest {
		t.Fatalf("missing grade = %d, want 400", code)
	}
	if fields, _ := errBody["fields"].([]any); len(fields) != 1 || fields[0] != "lots[0].grade" {
		t.Fatalf("fields = %v", errBody["fields"])
	}

	var res struct {
		Lots  []map[string]any `json:"lots"`
		Batch struct {
			WasteKg float64 `json:"waste_kg"`
			Status  string  `json:"status"`
		} `json:"batch"`
		Notices []apperr.Notice `json:"notices"`
	}
	body := `[{"grade":"A","box_size_id":` + itoa(box) + `,"carton_count":60},{"grade":"B","box_size_id":` + itoa(box) + `,"carton_count":35}]`
	if code := send(t, app, path, body, &res); code != fiber.StatusCreated {
		t.Fatalf("create lots = %d", code)
	}
	if len(res.Lots) != 2 || res.Batch.WasteKg != 50 || res.Batch.Status != "packing" || res.Notices == nil {
		t.Fatalf("response = %+v", res)
	}

	if code := send(t, app, "/batches/"+itoa(created.Batch.ID)+"/close", "", &errBody); code != fiber.StatusUnprocessableEntity {
		t.Fatalf("close = %d, want 422", code)
	}
	if errBody["code"] != "unallocated_cartons" {
		t.Fatalf("code = %v", errBody["code"])
	}
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
