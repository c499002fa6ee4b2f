// Package logging builds the zap loggers used across webgate.
//
// Production loggers write sampled JSON with ISO8601 timestamps and
// millisecond durations. Development loggers write colored console lines.
// Every logger is named "webgate"; proxy components take a child tagged
// with their name, so request lines, policy rejections and upstream
// failures can be filtered by component.
//
// Target URLs go through Target, which strips userinfo and masks token-like
// query values before they are written:
//
//	log := logging.NewDefault().Component("proxy")
//	log.Warn("fetch failed", logging.Target("target", target), zap.Error(err))
package logging
