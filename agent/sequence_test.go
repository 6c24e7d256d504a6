// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"testing"

	"github.com/bassosimone/declare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentAsSequencerTarget(t *testing.T) {
	ts := newTestServer(t)
	cfg := declare.NewConfig()
	a := newTestAgent(ts, declare.DefaultSLogger())
	seq := declare.NewSequencer(cfg, declare.DefaultSLogger())
	seq.SetDefaultTarget(a)

	t.Run("document with every phase", func(t *testing.T) {
		opts, err := declare.ParseOptions([]byte(`
send: [[name=tobi], [species=ferret]]
post: /echo
query: {page: 2}
set: [[X-One, "1"], [X-Two, "2"]]
timeout: {deadline: 5000}
redirects: 1
then: null
`))
		require.NoError(t, err)

		result, err := seq.Run(context.Background(), opts)
		require.NoError(t, err)
		require.IsType(t, &Promise{}, result)

		value, err := result.(*Promise).Await(context.Background())
		require.NoError(t, err)
		reply, err := decodeEcho(value.(*Response))
		require.NoError(t, err)
		assert.Equal(t, "POST", reply.Method)
		assert.Equal(t, "page=2", reply.Query)
		assert.Equal(t, "1", reply.Headers["X-One"])
		assert.Equal(t, "2", reply.Headers["X-Two"])
		assert.Equal(t, "name=tobi&species=ferret", reply.Body)
	})

	t.Run("body operation on the agent", func(t *testing.T) {
		var status int
		opts := declare.NewOptions().
			Set("head", "/text").
			Set("end", func(err error, resp *Response) {
				require.NoError(t, err)
				status = resp.Status
			})

		result, err := seq.Run(context.Background(), opts)
		require.NoError(t, err)
		assert.IsType(t, &Request{}, result)
		assert.Equal(t, 200, status)
	})

	t.Run("request with method", func(t *testing.T) {
		opts := declare.NewOptions().
			Set("request", []any{"delete", "/echo"}).
			Set("then", nil).
			Set("catch", nil)

		result, err := seq.Run(context.Background(), opts)
		require.NoError(t, err)
		value, err := result.(*Promise).Await(context.Background())
		require.NoError(t, err)
		reply, err := decodeEcho(value.(*Response))
		require.NoError(t, err)
		assert.Equal(t, "DELETE", reply.Method)
	})

	t.Run("agent errors are returned unmodified", func(t *testing.T) {
		opts := declare.NewOptions().Set("get", "/echo").Set("timeout", "soon")
		_, err := seq.Run(context.Background(), opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "agent: timeout")
		assert.NotContains(t, err.Error(), "declare:")
	})

	t.Run("missing method on the request", func(t *testing.T) {
		opts := declare.NewOptions().Set("get", "/echo").Set("options", "/x")
		_, err := seq.Run(context.Background(), opts)
		var invocationErr *declare.InvocationError
		require.ErrorAs(t, err, &invocationErr)
		assert.Equal(t, "*agent.Request", invocationErr.Target)
	})
}
