package emit

// Compile-time assertions that every backend satisfies Emitter.
var (
	_ Emitter = (*NullEmitter)(nil)
	_ Emitter = (*BufferedEmitter)(nil)
	_ Emitter = (*LogEmitter)(nil)
	_ Emitter = (*OtelEmitter)(nil)
)
