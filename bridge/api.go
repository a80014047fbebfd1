package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/alovak/cardflow-bridge/bridge/models"
	"github.com/alovak/cardflow-bridge/internal/cardcheck"
	"github.com/alovak/cardflow-bridge/internal/cardgen"
	"github.com/alovak/cardflow-bridge/internal/expiry"
	"github.com/go-chi/chi/v5"
)

// API is a HTTP API for the bridge. Interactive challenges are relayed through a
// QueueSurface: POST /charge answers 202 while the processor waits for an OTP, the client
// fetches the challenge, answers it, and collects the outcome from GET /charge/result.
type API struct {
	bridge  *Orchestrator
	surface *QueueSurface

	mu      sync.Mutex
	pending *PendingCharge
}

func NewAPI(bridge *Orchestrator, surface *QueueSurface) *API {
	bridge.AttachSurface(surface)
	return &API{
		bridge:  bridge,
		surface: surface,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Post("/initialize", a.initialize)
	r.Get("/session", a.getSession)

	r.Route("/card", func(r chi.Router) {
		r.Post("/", a.addCard)
		r.Get("/validation", a.validateCard)
		r.Get("/type", a.getCardType)
	})

	r.Route("/charge", func(r chi.Router) {
		r.Post("/", a.chargeCard)
		r.Get("/result", a.getChargeResult)
		r.Get("/challenge", a.getChallenge)
		r.Post("/challenge", a.answerChallenge)

		r.Post("/metadata", a.putMetadata)
		r.Post("/parameters", a.addParameters)
		r.Post("/custom-fields", a.putCustomFields)
		r.Put("/email", a.setEmail)
		r.Put("/amount", a.setAmount)
		r.Put("/access-code", a.setAccessCode)
		r.Put("/split", a.setSplit)
	})
}

func (a *API) initialize(w http.ResponseWriter, r *http.Request) {
	req := models.InitializeRequest{}
	if !decode(w, r, &req) {
		return
	}

	res, err := a.bridge.Initialize(req.PublicKey)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (a *API) addCard(w http.ResponseWriter, r *http.Request) {
	details := models.CardDetails{}
	if !decode(w, r, &details) {
		return
	}

	if err := a.bridge.AddCard(details); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) validateCard(w http.ResponseWriter, r *http.Request) {
	res, err := a.bridge.ValidateCard()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (a *API) getCardType(w http.ResponseWriter, r *http.Request) {
	res, err := a.bridge.GetCardType()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (a *API) putMetadata(w http.ResponseWriter, r *http.Request) {
	metadata := map[string]string{}
	if !decode(w, r, &metadata) {
		return
	}

	res, err := a.bridge.PutChargeMetadata(metadata)
	writeBatch(w, res, err)
}

func (a *API) addParameters(w http.ResponseWriter, r *http.Request) {
	params := map[string]string{}
	if !decode(w, r, &params) {
		return
	}

	res, err := a.bridge.AddChargeParameters(params)
	writeBatch(w, res, err)
}

func (a *API) putCustomFields(w http.ResponseWriter, r *http.Request) {
	fields := models.OrderedFields{}
	if !decode(w, r, &fields) {
		return
	}

	res, err := a.bridge.PutChargeCustomFields(fields)
	writeBatch(w, res, err)
}

func (a *API) setEmail(w http.ResponseWriter, r *http.Request) {
	req := models.EmailRequest{}
	if !decode(w, r, &req) {
		return
	}
	writeNoContent(w, a.bridge.SetChargeEmail(req.Email))
}

func (a *API) setAmount(w http.ResponseWriter, r *http.Request) {
	req := models.AmountRequest{}
	if !decode(w, r, &req) {
		return
	}
	writeNoContent(w, a.bridge.SetChargeAmount(req.Amount))
}

func (a *API) setAccessCode(w http.ResponseWriter, r *http.Request) {
	req := models.AccessCodeRequest{}
	if !decode(w, r, &req) {
		return
	}
	writeNoContent(w, a.bridge.SetAccessCode(req.AccessCode))
}

func (a *API) setSplit(w http.ResponseWriter, r *http.Request) {
	req := models.SplitRequest{}
	if !decode(w, r, &req) {
		return
	}
	writeNoContent(w, a.bridge.SetChargeSplit(req.Subaccount, req.Bearer))
}

// chargeCard starts the authorization and answers as soon as it settles or the processor
// asks for a challenge, whichever comes first.
func (a *API) chargeCard(w http.ResponseWriter, r *http.Request) {
	pending, err := a.bridge.Charge(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	a.mu.Lock()
	a.pending = pending
	a.mu.Unlock()

	select {
	case <-pending.Done():
		writeOutcome(w, pending)
	case ref := <-pending.ValidationRequested():
		writeJSON(w, http.StatusAccepted, models.ChargeResponse{
			Status:    models.ChargeStatusAwaitingValidation,
			Reference: ref,
		})
	case <-r.Context().Done():
	}
}

// getChargeResult waits for the last started charge, bounded by the request context.
func (a *API) getChargeResult(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	pending := a.pending
	a.mu.Unlock()

	if pending == nil {
		writeError(w, preconditionFailed("charge result", "no charge has been started"))
		return
	}

	select {
	case <-pending.Done():
		writeOutcome(w, pending)
	case <-r.Context().Done():
	}
}

func (a *API) getChallenge(w http.ResponseWriter, r *http.Request) {
	challenge, ok := a.surface.Pending()
	if !ok {
		http.Error(w, ErrNoPendingChallenge.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, challenge)
}

func (a *API) answerChallenge(w http.ResponseWriter, r *http.Request) {
	answer := models.ChallengeAnswer{}
	if !decode(w, r, &answer) {
		return
	}

	err := a.surface.Answer(answer.Reference, answer.Response)
	switch {
	case errors.Is(err, ErrNoPendingChallenge):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrChallengeMismatch):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionView(a.bridge.Snapshot()))
}

func sessionView(snap SessionSnapshot) models.SessionView {
	view := models.SessionView{
		State:       snap.State.String(),
		Initialized: snap.Initialized,
		Attempts:    snap.Attempts,
	}
	if snap.Card != nil {
		view.Card = &models.CardView{
			Number: cardgen.MaskPAN(snap.Card.Number),
			Last4:  cardgen.LastN(cardgen.NormalizePAN(snap.Card.Number), 4),
			Expiry: expiry.CardFace(snap.Card.ExpiryMonth, snap.Card.ExpiryYear),
			Brand:  cardcheck.Brand(snap.Card.Number),
		}
	}
	if c := snap.Charge; c != nil {
		view.Charge = &models.ChargeView{
			Currency:      c.Currency,
			Email:         c.Email,
			HasAccessCode: c.AccessCode != "",
			Metadata:      c.Metadata,
			CustomFields:  c.CustomFields,
			Subaccount:    c.Subaccount,
			Bearer:        c.Bearer,
			Path:          c.AuthorizationPath(),
		}
		if c.HasAmount {
			amount := c.Amount
			view.Charge.Amount = &amount
			view.Charge.Display = c.MajorUnits().StringFixed(2) + " " + c.Currency
		}
	}
	return view
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Code:    KindInvalidArgument.String(),
			Message: err.Error(),
		})
		return false
	}
	return true
}

func writeOutcome(w http.ResponseWriter, pending *PendingCharge) {
	tx, err := pending.result()
	if err != nil {
		writeErrorWithReference(w, err, tx.Reference)
		return
	}
	writeJSON(w, http.StatusOK, models.ChargeResponse{
		Status:    models.ChargeStatusSucceeded,
		Reference: tx.Reference,
	})
}

func writeBatch(w http.ResponseWriter, res BatchResult, err error) {
	batch := &models.BatchResponse{Applied: res.Applied}
	if batch.Applied == nil {
		batch.Applied = []string{}
	}
	if len(res.Failed) > 0 {
		batch.Failed = make(map[string]string, len(res.Failed))
		for k, e := range res.Failed {
			batch.Failed[k] = e.Error()
		}
	}

	if err != nil {
		resp := errorResponse(err)
		if KindOf(err) == KindInternal {
			resp.Batch = batch
		}
		writeJSON(w, statusFor(err), resp)
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

func writeNoContent(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse(err))
}

func writeErrorWithReference(w http.ResponseWriter, err error, reference string) {
	resp := errorResponse(err)
	resp.Reference = reference
	writeJSON(w, statusFor(err), resp)
}

func errorResponse(err error) models.ErrorResponse {
	resp := models.ErrorResponse{Code: KindOf(err).String(), Message: err.Error()}
	var e *Error
	if errors.As(err, &e) {
		resp.Message = e.Message
	}
	return resp
}

func statusFor(err error) int {
	switch KindOf(err) {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindPreconditionFailed:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
