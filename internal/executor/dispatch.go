package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	hooks "github.com/fedgraph/gateway/internal/hooks"
	language "github.com/fedgraph/gateway/internal/language"
	planner "github.com/fedgraph/gateway/internal/planner"
	respstore "github.com/fedgraph/gateway/internal/respstore"
	httptp "github.com/fedgraph/gateway/internal/transport/httptp"
)

// buildRequest renders the httptp.Request for doc: header rules, then the
// on_subgraph_request hook (§6), in that order so the hook sees the same
// forwarded/inserted headers a request without it would carry.
func (r *run) buildRequest(ctx context.Context, doc *planner.PartitionDocument, variables map[string]any) (httptp.Request, error) {
	rd := r.idx.Resolver(doc.Resolver)
	sg := r.idx.Subgraph(rd.Subgraph)
	headers := hooks.ApplyHeaderRules(sg.HeaderRules, r.clientHeaders)

	if r.e.SubgraphRequestHook != nil {
		h, err := r.e.SubgraphRequestHook.OnSubgraphRequest(ctx, sg.Name, http.MethodPost, sg.URL, headers)
		if err != nil {
			return httptp.Request{}, fmt.Errorf("executor: on_subgraph_request hook for %s: %w", sg.Name, err)
		}
		headers = h
	}

	return httptp.Request{
		Subgraph:   sg.Name,
		URL:        sg.URL,
		Headers:    headers,
		Query:      doc.Text,
		Variables:  variables,
		Idempotent: r.plan.OperationKind() != language.Mutation,
		Retry: httptp.RetryPolicy{
			MaxAttempts: sg.Retry.MaxAttempts,
			BaseDelayMS: sg.Retry.BaseDelayMS,
			MaxDelayMS:  sg.Retry.MaxDelayMS,
		},
	}, nil
}

// dispatch calls the transport and runs the on_subgraph_response hook
// around it (§6); the hook fires whether or not the call succeeded, with
// status 0 standing for "no HTTP response was received at all".
func (r *run) dispatch(ctx context.Context, req httptp.Request) (*httptp.Response, error) {
	start := time.Now()
	resp, err := r.e.Transport.Do(ctx, req)
	if r.e.SubgraphResponseHook != nil {
		status := 0
		if err == nil {
			status = http.StatusOK
		}
		r.e.SubgraphResponseHook.OnSubgraphResponse(ctx, req.Subgraph, status, time.Since(start))
	}
	return resp, err
}

// runRootDocument dispatches a root-level query/mutation document and
// writes it straight into the operation root.
func (r *run) runRootDocument(ctx context.Context, doc *planner.PartitionDocument) error {
	req, err := r.buildRequest(ctx, doc, nil)
	if err != nil {
		return err
	}
	resp, fetchErr := r.dispatch(ctx, req)

	r.mu.Lock()
	defer r.mu.Unlock()

	if fetchErr != nil {
		r.nullifyFetchFailure(r.plan.Root, doc.Keys, r.store.Root(), fetchErr)
		return nil
	}
	data, _ := decodeObject(resp.Data)
	r.writeTopLevel(r.plan.Root, doc.Keys, r.store.Root(), data)
	r.recordExtras(r.store.Root(), data)
	r.applySubgraphErrors(r.store.Root(), resp.Errors)
	return nil
}

// runEntityDocument dispatches an _entities(representations:...) document:
// build the representations variable from already-written response data,
// consult the entity cache, call the subgraph (or reuse a cached response),
// then write each element of the result back onto the object it came from.
func (r *run) runEntityDocument(ctx context.Context, doc *planner.PartitionDocument) error {
	r.mu.Lock()
	kept, reps := r.buildRepresentations(doc.View)
	r.mu.Unlock()
	if len(kept) == 0 {
		return nil
	}

	rd := r.idx.Resolver(doc.Resolver)
	sg := r.idx.Subgraph(rd.Subgraph)
	cacheEnabled := r.e.EntityCache != nil && sg.EntityCache.Enabled
	var cacheKey string

	var resp *httptp.Response
	if cacheEnabled {
		cacheKey = entityCacheKey(doc.Text, reps)
		if raw, ok, err := r.e.EntityCache.Get(ctx, cacheKey); err == nil && ok {
			var cached httptp.Response
			if json.Unmarshal(raw, &cached) == nil {
				resp = &cached
			}
		}
	}

	if resp == nil {
		req, err := r.buildRequest(ctx, doc, map[string]any{"representations": reps})
		if err != nil {
			return err
		}

		var fetchErr error
		resp, fetchErr = r.dispatch(ctx, req)
		if fetchErr != nil {
			r.mu.Lock()
			for _, t := range kept {
				r.nullifyFetchFailure(r.branchOf[t], doc.Keys, t, fetchErr)
			}
			r.mu.Unlock()
			return nil
		}
		if cacheEnabled {
			if raw, err := json.Marshal(resp); err == nil {
				_ = r.e.EntityCache.Put(ctx, cacheKey, raw, time.Duration(sg.EntityCache.TTLSeconds)*time.Second)
			}
		}
	}

	entities, _ := decodeEntitiesArray(resp.Data)

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range kept {
		var data map[string]any
		if i < len(entities) {
			data, _ = entities[i].(map[string]any)
		}
		r.writeTopLevel(r.branchOf[t], doc.Keys, t, data)
		if data != nil {
			r.recordExtras(t, data)
		}
	}
	r.applyEntitySubgraphErrors(kept, resp.Errors)
	return nil
}

// entityCacheKey identifies a cached entity response by the exact document
// text plus the representations sent, so two calls to the same resolver
// with different representations never collide.
func entityCacheKey(queryText string, reps []map[string]any) string {
	h := sha256.New()
	h.Write([]byte(queryText))
	h.Write([]byte{0})
	enc, _ := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(reps)
	h.Write(enc)
	return hex.EncodeToString(h.Sum(nil))
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeEntitiesArray(raw json.RawMessage) ([]any, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	arr, _ := data["_entities"].([]any)
	return arr, nil
}

// applySubgraphErrors reinterprets a root document's subgraph errors, whose
// Path is already relative to that document's own data object, and
// null-propagates from the slot each one names.
func (r *run) applySubgraphErrors(base respstore.ValueID, errs []httptp.SubgraphError) {
	for _, e := range errs {
		id, ok := r.resolvePath(base, e.Path)
		if !ok {
			continue
		}
		r.store.Nullify(id, e.Message, e.Extensions)
	}
}

// applyEntitySubgraphErrors reinterprets an _entities document's subgraph
// errors: Path is relative to the wrapping `_entities[i]` the subgraph
// itself assigned, which this run maps back to kept[i] before resolving the
// remainder of the path as usual.
func (r *run) applyEntitySubgraphErrors(kept []respstore.ValueID, errs []httptp.SubgraphError) {
	for _, e := range errs {
		if len(e.Path) < 2 {
			continue
		}
		name, ok := e.Path[0].(string)
		if !ok || name != "_entities" {
			continue
		}
		idxF, ok := e.Path[1].(float64)
		if !ok {
			continue
		}
		i := int(idxF)
		if i < 0 || i >= len(kept) {
			continue
		}
		if id, ok := r.resolvePath(kept[i], e.Path[2:]); ok {
			r.store.Nullify(id, e.Message, e.Extensions)
			continue
		}
		r.store.Nullify(kept[i], e.Message, e.Extensions)
	}
}

// resolvePath walks a subgraph error's response-relative path down from
// base, matching it against the same objects the deserializer already
// wrote. A path segment with no matching slot (the subgraph named a field
// this document never selected, for instance) is dropped rather than
// guessed at.
func (r *run) resolvePath(base respstore.ValueID, path []any) (respstore.ValueID, bool) {
	cur := base
	for _, seg := range path {
		val := r.store.Value(cur)
		switch s := seg.(type) {
		case string:
			if val.Kind != respstore.KindObject {
				return 0, false
			}
			child, ok := r.store.Object(val.Object).Value(s)
			if !ok {
				return 0, false
			}
			cur = child
		case float64:
			if val.Kind != respstore.KindList {
				return 0, false
			}
			i := int(s)
			if i < 0 || i >= len(val.List) {
				return 0, false
			}
			cur = val.List[i]
		default:
			return 0, false
		}
	}
	return cur, true
}
