package observability

const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"
	AttrRequestID      = "request.id"
	AttrSessionID      = "session.id"
	AttrStageName      = "stage.name"
	AttrStageStatus    = "stage.status"
	AttrToolName       = "tool.name"
	AttrToolStrategy   = "tool.strategy"
	AttrLLMModel       = "llm.model"
	AttrLLMProvider    = "llm.provider"
	AttrLLMTokensIn    = "llm.tokens.input"
	AttrLLMTokensOut   = "llm.tokens.output"
	AttrErrorType      = "error.type"

	SpanStageRun      = "pipeline.stage"
	SpanToolExecution = "tool.execution"
	SpanLLMCall       = "llm.call"

	DefaultServiceName  = "codescout"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
)
