// Package odataconn is the reference "odata" connector. Like sqlconn, it
// receives an already-folded request (a fully-built URL with $select/
// $filter/$orderby/$top applied by folding/odatafold) and is responsible
// only for the HTTP round trip and JSON decoding, never for deciding
// what to fold.
package odataconn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

const ID = "odata"

type Request struct {
	Url      string
	Headers  map[string]string
	RowsPath string // dotted path to the rows array in the response envelope; "" means top-level array
}

type Connector struct {
	client *http.Client
}

func New(client *http.Client) *Connector {
	if client == nil {
		client = http.DefaultClient
	}
	return &Connector{client: client}
}

func (c *Connector) ID() string             { return ID }
func (c *Connector) PermissionKind() string { return "http" }

func (c *Connector) CacheKey(req connector.Request) (any, error) {
	r, ok := req.Params.(Request)
	if !ok {
		return nil, pqerr.New(pqerr.KindInvalidArgument, "odataconn: unrecognized request payload")
	}
	return map[string]any{"kind": "odata", "url": r.Url}, nil
}

func (c *Connector) Execute(ctx context.Context, req connector.Request, host connector.Host) (connector.Result, error) {
	r, ok := req.Params.(Request)
	if !ok {
		return connector.Result{}, pqerr.New(pqerr.KindInvalidArgument, "odataconn: unrecognized request payload")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, r.Url, nil)
	if err != nil {
		return connector.Result{}, pqerr.Wrap(pqerr.KindInvalidArgument, "odataconn: building request", err)
	}
	for k, v := range r.Headers {
		httpReq.Header.Set(k, v)
	}
	if host.Credentials != nil {
		if tok, ok := host.Credentials.Secret["bearer"]; ok {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return connector.Result{}, pqerr.Wrap(pqerr.KindCancelled, "odataconn: request cancelled", ctx.Err())
		}
		return connector.Result{}, pqerr.Wrap(pqerr.KindConnectorFailure, "odataconn: request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return connector.Result{}, pqerr.Wrap(pqerr.KindConnectorFailure, "odataconn: reading response", err)
	}
	if resp.StatusCode >= 400 {
		return connector.Result{}, pqerr.New(pqerr.KindConnectorFailure, fmt.Sprintf("odataconn: %s returned %d: %s", r.Url, resp.StatusCode, truncate(body, 256)))
	}

	t, err := decodeEnvelope(body, r.RowsPath)
	if err != nil {
		return connector.Result{}, pqerr.Wrap(pqerr.KindConnectorFailure, "odataconn: decoding response", err)
	}

	meta := connector.ResultMeta{RowCountKnown: true}
	if etag := resp.Header.Get("ETag"); etag != "" {
		meta.SourceState = connector.SourceState{Etag: etag, HasEtag: true}
	}
	return connector.Result{Table: t, Meta: meta}, nil
}

func (c *Connector) GetSourceState(ctx context.Context, req connector.Request, host connector.Host, known connector.KnownState) (connector.SourceState, error) {
	r, ok := req.Params.(Request)
	if !ok {
		return connector.SourceState{}, pqerr.New(pqerr.KindInvalidArgument, "odataconn: unrecognized request payload")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodHead, r.Url, nil)
	if err != nil {
		return connector.SourceState{}, pqerr.Wrap(pqerr.KindInvalidArgument, "odataconn: building HEAD request", err)
	}
	if known.KnownEtag != "" {
		httpReq.Header.Set("If-None-Match", known.KnownEtag)
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return connector.SourceState{}, pqerr.Wrap(pqerr.KindConnectorFailure, "odataconn: HEAD failed", err)
	}
	defer resp.Body.Close()
	state := connector.SourceState{}
	if etag := resp.Header.Get("ETag"); etag != "" {
		state.Etag, state.HasEtag = etag, true
	}
	return state, nil
}

func decodeEnvelope(body []byte, rowsPath string) (table.Table, error) {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, err
	}
	rowsAny, err := navigate(root, rowsPath)
	if err != nil {
		return nil, err
	}
	rows, ok := rowsAny.([]any)
	if !ok {
		return nil, fmt.Errorf("odataconn: rows path %q did not resolve to an array", rowsPath)
	}

	colOrder := []string{}
	colSeen := map[string]bool{}
	for _, rowAny := range rows {
		obj, ok := rowAny.(map[string]any)
		if !ok {
			continue
		}
		for k := range obj {
			if !colSeen[k] {
				colSeen[k] = true
				colOrder = append(colOrder, k)
			}
		}
	}

	cols := make([]table.Column, len(colOrder))
	for i, name := range colOrder {
		cols[i] = table.Column{Name: name}
	}
	data := make([][]value.Value, 0, len(rows))
	for _, rowAny := range rows {
		obj, _ := rowAny.(map[string]any)
		row := make([]value.Value, len(colOrder))
		for i, name := range colOrder {
			row[i] = jsonToValue(obj[name])
		}
		data = append(data, row)
	}
	return table.New(cols, data), nil
}

func jsonToValue(v any) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(t)
	case float64:
		return value.Number(t)
	case string:
		return value.Text(t)
	default:
		b, _ := json.Marshal(t)
		return value.Text(string(b))
	}
}

// navigate walks a dotted path (e.g. "value" or "d.results") through a
// decoded JSON document; "" returns root unchanged.
func navigate(root any, path string) (any, error) {
	if path == "" {
		return root, nil
	}
	cur := root
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("odataconn: cannot navigate %q, not an object", part)
		}
		cur, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("odataconn: missing %q in response envelope", part)
		}
	}
	return cur, nil
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ connector.Connector = (*Connector)(nil)
var _ connector.SourceStater = (*Connector)(nil)
