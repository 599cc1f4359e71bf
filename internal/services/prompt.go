package services

import (
	"fmt"
	"strings"
)

// User-facing notices. The pipeline never shows upstream error bodies.
const (
	MsgProcessing     = "🎧 Processing your voice message..."
	MsgTranscribing   = "🎯 Transcribing your voice..."
	MsgThinking       = "🧠 Processing with AI..."
	MsgRateLimited    = "⚠️ Too many requests. Please wait a moment before sending another voice message."
	MsgAudioTooLarge  = "⚠️ Voice message too large. Please keep it under 5MB."
	MsgAudioTooLong   = "⚠️ Voice message too long. Please keep it under 2 minutes."
	MsgNotUnderstood  = "🤔 I couldn't understand your voice message clearly. Could you try speaking a bit louder and clearer?"
	MsgGenericTrouble = "🔧 Sorry, I'm having trouble processing your voice message right now. Please try again in a moment."
)

// Footer taglines appended to every formatted reply.
const (
	FooterWhatsApp = "_Powered by ODIA AI - Voice to Text Assistant_"
	FooterTelegram = "_🤖 ODIA AI - Voice to Text Assistant_\n_Try /upgrade for premium features_"
)

// Prompter builds the per-channel system prompt.
type Prompter struct {
	AgentName string // e.g. "ODIA Agent"
	Locale    string // e.g. "Nigerian"
	MaxWords  int    // reply length ceiling, 250 when zero
}

// SystemPrompt returns the instruction block for one completion call. The
// transcription is embedded verbatim.
func (p Prompter) SystemPrompt(channel, userName, transcription string) string {
	name := p.AgentName
	if name == "" {
		name = "ODIA Agent"
	}
	locale := p.Locale
	if locale == "" {
		locale = "Nigerian"
	}
	words := p.MaxWords
	if words <= 0 {
		words = 250
	}
	if strings.TrimSpace(userName) == "" {
		userName = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a helpful AI assistant for %s users on %s.\n\n", name, locale, channel)
	b.WriteString("Key Guidelines:\n")
	b.WriteString("- You communicate via text only (NO voice output ever)\n")
	b.WriteString("- Be warm, friendly, and locally aware\n")
	b.WriteString("- If they used Nigerian Pidgin, Yoruba, Hausa, or Igbo, respond naturally in the same style\n")
	fmt.Fprintf(&b, "- Keep responses concise but informative (under %d words)\n", words)
	b.WriteString("- If asked about voice features, clarify you understand voice but respond with text only\n\n")
	fmt.Fprintf(&b, "The user %s sent this voice message: \"%s\"\n\n", userName, transcription)
	b.WriteString("Respond helpfully in text format only.")
	return b.String()
}

// FormatReply renders the outbound message for a successful run.
func FormatReply(transcription, reply, footer string) string {
	return fmt.Sprintf("🎯 *I heard:* \"%s\"\n\n💬 *My response:*\n%s\n\n---\n%s", transcription, reply, footer)
}
