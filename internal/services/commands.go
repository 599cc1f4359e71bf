package services

import (
	"fmt"
	"strings"
)

// Button is one inline keyboard button. Exactly one of Data or URL is set.
type Button struct {
	Text string
	Data string // callback payload
	URL  string
}

// StaticReply is a canned informational message outside the voice pipeline.
type StaticReply struct {
	Text    string
	Buttons [][]Button
}

const (
	websiteURL = "https://odia.dev"
	contactURL = "mailto:austynodia@gmail.com"
)

// TelegramCommand returns the reply for a bot command or callback payload
// ("/start", "/help", "/upgrade", "help", "upgrade"). ok is false for
// anything else.
func TelegramCommand(cmd, userName string) (StaticReply, bool) {
	cmd = strings.TrimSpace(cmd)
	// "/help@SomeBot" addresses a command to one bot in a group.
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	switch strings.TrimPrefix(cmd, "/") {
	case "start":
		return StaticReply{Text: welcomeText(userName), Buttons: [][]Button{
			{{Text: "🆘 Help", Data: "help"}, {Text: "🚀 Upgrade", Data: "upgrade"}},
			{{Text: "🌐 Visit Website", URL: websiteURL}},
		}}, true
	case "help":
		return StaticReply{Text: telegramHelpText, Buttons: [][]Button{
			{{Text: "🚀 Try Premium", Data: "upgrade"}},
			{{Text: "💬 Contact Support", URL: contactURL}},
		}}, true
	case "upgrade":
		return StaticReply{Text: upgradeText, Buttons: [][]Button{
			{{Text: "💬 Contact Sales", URL: contactURL}, {Text: "🌐 Learn More", URL: websiteURL}},
		}}, true
	}
	return StaticReply{}, false
}

// TelegramTextReply answers plain text with a nudge towards voice.
func TelegramTextReply() StaticReply {
	return StaticReply{Text: textNudge, Buttons: [][]Button{
		{{Text: "🆘 Need Help?", Data: "help"}},
	}}
}

// TelegramFallback answers updates that carry neither text nor audio.
const TelegramFallback = "Please send me a voice message! I work best with voice input. 🎤"

// WhatsAppTextReply picks the informational reply for a text-only message.
func WhatsAppTextReply(body string) string {
	b := strings.ToLower(body)
	switch {
	case strings.Contains(b, "help"):
		return whatsappHelpText
	case strings.Contains(b, "upgrade"):
		return upgradeText
	default:
		return voiceInstructions
	}
}

// WhatsAppUnsupported answers media that is not audio.
const WhatsAppUnsupported = "Sorry, I can only process voice messages. Please send a voice note! 🎤"

func welcomeText(userName string) string {
	if strings.TrimSpace(userName) == "" {
		userName = "there"
	}
	return fmt.Sprintf(`🎤 *Welcome to ODIA Voice Assistant!*

Hi %s! I'm your AI assistant that understands Nigerian languages perfectly.

*🌟 What makes me special:*
• I understand voice in English, Pidgin, Yoruba, Hausa & Igbo
• I respond with helpful text (no confusing voice replies)
• Built specifically for Nigerian businesses & individuals

*🎯 How to use me:*
1️⃣ Tap the microphone button 🎙️
2️⃣ Speak clearly in your preferred language
3️⃣ Send the voice message
4️⃣ Get instant text responses!

*💡 Try these examples:*
🗣️ "How can you help my business?"
🗣️ "Wetin you fit do for me?" (Pidgin)
🗣️ "Bawo ni o ṣe le ran mi lowo?" (Yoruba)

*Ready?* Send me your first voice message! 🚀

_Powered by ODIA AI - Nigeria's Voice AI Platform_`, userName)
}

const telegramHelpText = `🆘 *ODIA Voice Assistant Help*

*🎤 Supported Voice Languages:*
• 🇬🇧 English
• 🇳🇬 Nigerian Pidgin
• 🗣️ Yoruba, Hausa, Igbo

*💼 What I can help with:*
• Business questions & advice
• Customer service automation
• General information & guidance
• Local recommendations
• Technology solutions

*📱 Commands:*
• /start - Welcome message
• /help - Show this help
• /upgrade - Premium features info

*🎯 Usage Tips:*
• Speak clearly into your phone mic
• Keep messages under 2 minutes
• I respond with text (easier to read & share)
• Works great for business discussions

*🔧 Having issues?*
Contact: austynodia@gmail.com
Website: odia.dev

Ready to try? Send a voice message! 🎙️`

const whatsappHelpText = `🤖 *ODIA Voice Assistant Help*

*How to use:*
🎤 Send me a voice message in any of these languages:
• English
• Nigerian Pidgin
• Yoruba
• Hausa
• Igbo

*What I can help with:*
• Business questions
• Customer service
• General information
• Local recommendations

*Commands:*
• "help" - Show this message
• "upgrade" - Learn about premium features

Just record your voice and send! 🗣️`

const voiceInstructions = `🎤 *ODIA Voice Assistant*

Hello! I'm your AI assistant that understands Nigerian languages.

*To use me:*
📱 Hold the microphone button
🗣️ Speak clearly in English, Pidgin, Yoruba, Hausa, or Igbo
📤 Send the voice message
💬 I'll reply with helpful text

*Try saying:*
"How can you help my business?"
"Wetin you fit do for me?" (Pidgin)
"Bawo ni o ṣe le ran mi lowo?" (Yoruba)

Send a voice note to get started! 🎙️`

const upgradeText = `🚀 *ODIA Premium Features*

Upgrade for advanced capabilities:
• Unlimited voice messages
• Priority processing
• Business analytics
• Custom AI training
• WhatsApp Business API
• Multi-agent support

💰 *Pricing:*
• Starter: ₦5,000/month
• Pro: ₦15,000/month
• Enterprise: Custom pricing

Contact: austynodia@gmail.com
Website: odia.dev

Ready to upgrade your business? 📈`

const textNudge = `📝 I see you sent text, but I work best with voice!

🎤 *Why voice is better:*
• More natural communication
• I understand Nigerian languages perfectly
• Faster than typing long messages
• Great for business discussions

*🎯 Just hold the microphone button and speak!*

I can understand:
🗣️ English, Pidgin, Yoruba, Hausa, Igbo

Try saying: _"Hello, how can you help my business?"_

Send a voice note now! 🎙️`
