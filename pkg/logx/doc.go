// Package logx configures postbot's structured logging.
//
// Logger is a thin value type on top of zerolog:
//   - console output stays readable (short timestamp, short caller)
//   - file output is JSON
//   - an optional Telegram alert sink forwards WARN+ lines to an operator chat
package logx
