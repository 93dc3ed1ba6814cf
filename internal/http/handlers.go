package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/subscriptions"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w, r)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.Metrics()).Write(w, r)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeServiceError(w, r, log.OpRead, err)
		return
	}
	q, err := parseDashboardQuery(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, log.OpRead, err)
		return
	}
	d, err := s.svc.Dashboard.Build(r.Context(), uid, q)
	if err != nil {
		writeServiceError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(d).Write(w, r)
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	subs, err := s.svc.Dashboard.Subscriptions(r.Context(), uid)
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	if subs == nil {
		subs = []subscriptions.Candidate{}
	}
	NewJSONResponse().Body(map[string]any{"subscriptions": subs}).Write(w, r)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	tx, conflict, err := req.toTransaction(uid)
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	if conflict {
		log.FromContext(r.Context()).WarnContext(r.Context(), "transaction_kind and type disagree, using transaction_kind",
			log.FieldUserID, uid,
			"transaction_kind", req.TransactionKind,
			"type", req.Type)
	}
	created, err := s.svc.Ledger.CreateTransaction(r.Context(), tx)
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", r.URL.Path+"/"+created.ID).
		Body(created).
		Write(w, r)
}

// createEntity decodes a T owned by the path user, saves it with create and answers 201.
func createEntity[T any](w http.ResponseWriter, r *http.Request, setUser func(*T, string), create func(T) (T, error)) {
	uid, err := userID(r)
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	var v T
	if err := decodeJSON(w, r, &v); err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	setUser(&v, uid)
	created, err := create(v)
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w, r)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	createEntity(w, r,
		func(a *core.Account, uid string) { a.UserID = uid },
		func(a core.Account) (core.Account, error) { return s.svc.Ledger.CreateAccount(r.Context(), a) })
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	createEntity(w, r,
		func(c *core.Category, uid string) { c.UserID = uid },
		func(c core.Category) (core.Category, error) { return s.svc.Ledger.CreateCategory(r.Context(), c) })
}

func (s *Server) handleCreateRecurringRule(w http.ResponseWriter, r *http.Request) {
	createEntity(w, r,
		func(rule *core.RecurringRule, uid string) { rule.UserID = uid },
		func(rule core.RecurringRule) (core.RecurringRule, error) {
			return s.svc.Ledger.CreateRecurringRule(r.Context(), rule)
		})
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	createEntity(w, r,
		func(b *core.Budget, uid string) { b.UserID = uid },
		func(b core.Budget) (core.Budget, error) { return s.svc.Ledger.CreateBudget(r.Context(), b) })
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	createEntity(w, r,
		func(g *core.Goal, uid string) { g.UserID = uid },
		func(g core.Goal) (core.Goal, error) { return s.svc.Ledger.CreateGoal(r.Context(), g) })
}

type materializeResponse struct {
	UserID         string    `json:"user_id"`
	Today          core.Date `json:"today"`
	Inserted       int       `json:"inserted"`
	Updated        int       `json:"updated"`
	TransactionIDs []string  `json:"transaction_ids"`
}

// handleMaterialize runs the recurring catch-up for one user. today defaults to the
// server's current date and may only move it back: occurrences are never written ahead
// of the real calendar.
func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeServiceError(w, r, log.OpMaterialize, err)
		return
	}
	today, err := materializeDate(r.URL.Query(), core.Today())
	if err != nil {
		writeServiceError(w, r, log.OpMaterialize, err)
		return
	}

	res, err := s.svc.Recurring.MaterializeUser(r.Context(), uid, today)
	if err != nil {
		writeServiceError(w, r, log.OpMaterialize, err)
		return
	}
	out := materializeResponse{UserID: uid, Today: today, TransactionIDs: []string{}}
	if res != nil {
		out.Inserted, out.Updated = res.Inserted, res.Updated
		for _, tx := range res.Transactions {
			out.TransactionIDs = append(out.TransactionIDs, tx.ID)
		}
	}
	NewJSONResponse().Body(out).Write(w, r)
}
