// Package tgui provides small Telegram UI helpers: inline keyboard builders,
// the "prefix:action:payload" callback codec, HTML escaping and a message
// unit that carries its own send options.
package tgui
