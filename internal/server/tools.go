// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"mcp-dish-order/internal/auth"
	"mcp-dish-order/internal/catalog"
	"mcp-dish-order/internal/draft"
	"mcp-dish-order/internal/inventory"
	"mcp-dish-order/internal/models"
	"mcp-dish-order/internal/pricing"
	"mcp-dish-order/internal/storage"
	"mcp-dish-order/internal/validation"
)

type DraftEvent struct {
	Type  string `json:"type" description:"toggle_ingredient, change_size, change_base or refresh"`
	Value string `json:"value,omitempty" description:"Ingredient, size or base name the event targets"`
}

type PreviewDraftParams struct {
	Size   string       `json:"size,omitempty" description:"Initial size (defaults to the first on the menu)"`
	Base   string       `json:"base,omitempty" description:"Initial base (defaults to the first on the menu)"`
	Events []DraftEvent `json:"events" description:"Edits to replay on the draft, in order"`
}

type PlaceOrderParams struct {
	Size        string   `json:"size" description:"Dish size"`
	Base        string   `json:"base" description:"Dish base"`
	Ingredients []string `json:"ingredients" description:"Chosen ingredients, in order"`
	Price       float64  `json:"price" description:"Price shown to the customer"`
}

type OrderIDParams struct {
	ID int64 `json:"id" description:"Order id"`
}

// Messages shown to callers that fail authentication.
const (
	msgNotAuthenticated = "Not authenticated"
	msgMissingTOTP      = "Missing TOTP authentication"
)

type toolResult struct {
	status int
	body   *protocol.CallToolResult
}

type toolHandler func(ctx context.Context, r *http.Request, req *protocol.CallToolRequest) (*toolResult, error)

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	// Convert the Arguments map to JSON bytes, then unmarshal to target
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return &toolError{
			status:  http.StatusUnprocessableEntity,
			code:    "invalid_parameters",
			message: fmt.Sprintf("invalid parameters: %v", err),
		}
	}

	return nil
}

func (s *DishOrderServer) registerTools() {
	s.tools = map[string]toolHandler{
		"get_menu":      s.handleGetMenu,
		"preview_draft": s.handlePreviewDraft,
		"place_order":   s.handlePlaceOrder,
		"cancel_order":  s.handleCancelOrder,
		"list_orders":   s.handleListOrders,
		"view_order":    s.handleViewOrder,
	}
	for name := range s.tools {
		s.logger.Debug("Registered tool", zap.String("tool", name))
	}
}

func (s *DishOrderServer) identify(r *http.Request) (auth.Identity, error) {
	id, err := s.auth.Authenticate(r)
	if err != nil {
		return auth.Identity{}, &toolError{status: http.StatusUnauthorized, message: msgNotAuthenticated}
	}
	return id, nil
}

func (s *DishOrderServer) handleGetMenu(ctx context.Context, _ *http.Request, _ *protocol.CallToolRequest) (*toolResult, error) {
	cat, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return s.createJSONResponse(http.StatusOK, cat.Menu())
}

// handlePreviewDraft replays a client's edits so it can show the same
// annotations the server will enforce at submit time.
func (s *DishOrderServer) handlePreviewDraft(ctx context.Context, _ *http.Request, req *protocol.CallToolRequest) (*toolResult, error) {
	var params PreviewDraftParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	cat, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	session := draft.NewSession(cat, params.Size, params.Base)
	for i, ev := range params.Events {
		event, err := toDraftEvent(ev)
		if err != nil {
			return nil, &toolError{
				status:  http.StatusUnprocessableEntity,
				code:    "invalid_parameters",
				message: fmt.Sprintf("event %d: %v", i, err),
			}
		}
		session.Apply(event)
	}

	sel := session.Selection()
	return s.createJSONResponse(http.StatusOK, map[string]interface{}{
		"selection": sel,
		"price":     pricing.Price(sel, cat),
	})
}

func toDraftEvent(ev DraftEvent) (draft.Event, error) {
	switch ev.Type {
	case "toggle_ingredient":
		return draft.ToggleIngredient{Name: ev.Value}, nil
	case "change_size":
		return draft.ChangeSize{Size: ev.Value}, nil
	case "change_base":
		return draft.ChangeBase{Base: ev.Value}, nil
	case "refresh":
		return draft.Refresh{}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func (s *DishOrderServer) handlePlaceOrder(ctx context.Context, r *http.Request, req *protocol.CallToolRequest) (*toolResult, error) {
	identity, err := s.identify(r)
	if err != nil {
		return nil, err
	}

	var params PlaceOrderParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.Ingredients == nil {
		params.Ingredients = []string{}
	}

	cat, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	candidate := validation.Candidate{
		Size:        params.Size,
		Base:        params.Base,
		Ingredients: params.Ingredients,
		Price:       params.Price,
	}
	if err := s.validate(ctx, candidate, cat); err != nil {
		return nil, err
	}

	// Date and owner are stamped here, never taken from the client.
	order := &models.Order{
		UserID:      identity.UserID,
		Date:        time.Now().UTC(),
		Price:       params.Price,
		Size:        params.Size,
		Base:        params.Base,
		Ingredients: params.Ingredients,
	}
	saved, err := s.inventory.Create(ctx, order)
	if err != nil {
		if errors.Is(err, inventory.ErrUnavailable) {
			s.metrics.OrdersRejected.WithLabelValues("availability_conflict").Inc()
			return nil, &toolError{
				status:  http.StatusUnprocessableEntity,
				code:    "availability_conflict",
				message: err.Error(),
			}
		}
		return nil, err
	}

	return s.createJSONResponse(http.StatusCreated, saved)
}

func (s *DishOrderServer) validate(ctx context.Context, c validation.Candidate, cat *catalog.Catalog) error {
	_, span := s.tracer.Start(ctx, "order.validate")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.size", c.Size),
		attribute.String("order.base", c.Base),
		attribute.Int("order.ingredients", len(c.Ingredients)),
	)

	err := validation.Validate(c, cat)
	var verr *validation.Error
	if errors.As(err, &verr) {
		span.SetAttributes(attribute.String("validation.code", verr.Code))
		span.SetStatus(codes.Error, verr.Code)
		s.metrics.OrdersRejected.WithLabelValues(verr.Code).Inc()
		return &toolError{status: http.StatusUnprocessableEntity, code: verr.Code, message: verr.Message}
	}
	return err
}

func (s *DishOrderServer) handleCancelOrder(ctx context.Context, r *http.Request, req *protocol.CallToolRequest) (*toolResult, error) {
	identity, err := s.identify(r)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireTOTP(identity); err != nil {
		return nil, &toolError{status: http.StatusUnauthorized, message: msgMissingTOTP}
	}

	var params OrderIDParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.ID <= 0 {
		return nil, &toolError{
			status:  http.StatusUnprocessableEntity,
			code:    "invalid_parameters",
			message: "order id must be a positive integer",
		}
	}

	n, err := s.inventory.Cancel(ctx, params.ID, identity.UserID)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(http.StatusOK, map[string]int64{"numRowChanged": n})
}

func (s *DishOrderServer) handleListOrders(ctx context.Context, r *http.Request, _ *protocol.CallToolRequest) (*toolResult, error) {
	identity, err := s.identify(r)
	if err != nil {
		return nil, err
	}

	orders, err := s.inventory.List(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(http.StatusOK, orders)
}

// handleViewOrder renders a placed order as a read-only draft.
func (s *DishOrderServer) handleViewOrder(ctx context.Context, r *http.Request, req *protocol.CallToolRequest) (*toolResult, error) {
	identity, err := s.identify(r)
	if err != nil {
		return nil, err
	}

	var params OrderIDParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	order, err := s.inventory.Get(ctx, params.ID, identity.UserID)
	if errors.Is(err, storage.ErrOrderNotFound) {
		return nil, &toolError{status: http.StatusNotFound, message: fmt.Sprintf("Order %d not found.", params.ID)}
	}
	if err != nil {
		return nil, err
	}

	cat, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return s.createJSONResponse(http.StatusOK, map[string]interface{}{
		"order":     order,
		"selection": draft.ReadOnly(*order, cat),
	})
}

func (s *DishOrderServer) createJSONResponse(status int, data interface{}) (*toolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &toolResult{
		status: status,
		body: &protocol.CallToolResult{
			Content: []protocol.Content{
				protocol.TextContent{
					Type: "text",
					Text: string(jsonBytes),
				},
			},
		},
	}, nil
}
