// internal/common/observability/observability_test.go
package observability

import (
	"context"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNew_RegistersWithProvidedRegistry(t *testing.T) {
	reg := promclient.NewRegistry()
	o, err := New(Config{ServiceName: "filing-automation-test", Registerer: reg})
	require.NoError(t, err)
	defer o.Shutdown(context.Background())

	ctx := context.Background()
	o.RecordJobProcessed(ctx, "COMPLETED")
	o.RecordJobDuration(ctx, 120*time.Millisecond, "COMPLETED")

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["automation_jobs_processed_total"], "got %v", names)
}

func TestNoop_StartSpanIsSafe(t *testing.T) {
	o := NewNoop()
	ctx, span := o.StartSpan(context.Background(), "automation.run", attribute.String("jobId", "j-1"))
	assert.NotNil(t, ctx)
	span.End()
	o.RecordJobProcessed(ctx, "FAILED")
	assert.NoError(t, o.Shutdown(context.Background()))
}
