package content

import (
	"fmt"
	"math/rand"

	"github.com/ignite/engagement-agent/internal/domain"
)

// Rand picks a uniformly random index in [0, n).
type Rand interface {
	Intn(n int) int
}

// globalRand uses the goroutine-safe top-level math/rand source.
type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }

// DefaultToneTemplates are the engagement candidates per tone.
var DefaultToneTemplates = map[domain.Tone][]string{
	domain.TonePlayful: {
		"Hey {{ name }}! 👋 You've got 3 new matches waiting. Don't leave them hanging! 💕",
		"{{ name }}, someone's been checking out your profile! 👀 Come see who it is!",
		"We miss you, {{ name }}! 😢 Your connections have been asking about you. Jump back in!",
		"{{ name }}! 🎉 You have 5 unread messages. Your admirers are waiting!",
		"Hey {{ name }}, the party's not the same without you! 🎊 Come catch up on what you've missed!",
		"{{ name }}, you're missing out! 🔥 New people in your area are looking to connect!",
	},
	domain.ToneWarm: {
		"Welcome to the community, {{ name }}! 🌟 Let's help you get started on your journey.",
		"Hi {{ name }}! 👋 We're excited to have you here. Ready to make some connections?",
		"Hey {{ name }}! ✨ Your profile is looking great! Let's find your perfect match.",
		"{{ name }}, welcome aboard! 🚀 We've found 10 people you might really click with!",
		"Great to see you, {{ name }}! 💙 Let's make today the start of something special!",
		"{{ name }}, you're all set! 🎉 Time to explore and meet amazing people!",
	},
	domain.ToneNeutral: {
		"Hi {{ name }}, just a quick reminder to check your messages! 📬 You have 2 new notifications.",
		"Hey {{ name }}! 👋 Your weekly activity summary is ready. See who viewed your profile!",
		"{{ name }}, don't forget to complete your profile! 📝 It increases your match rate by 3x.",
		"Hi {{ name }}! 💬 You have pending connection requests. Take a look when you can!",
		"Hey {{ name }}, hope you're doing well! 😊 Check out today's featured profiles just for you.",
		"{{ name }}, your feed has been updated! 🌈 New posts from your connections are waiting.",
	},
	domain.ToneWelcomeBack: {
		"Welcome back, {{ name }}! 🎉 We saved your spot. See who's been waiting for you.",
		"{{ name }}, you're back! 💫 A lot has happened while you were away. Let's catch up!",
		"Good to see you again, {{ name }}! 👋 Your matches missed you.",
		"Look who's here! 🙌 Welcome back, {{ name }}. Fresh profiles are waiting for you.",
	},
}

// Catalog maps tones to compiled candidate templates.
type Catalog struct {
	tones map[domain.Tone][]*Template
	rng   Rand
}

// NewCatalog builds a catalog from DefaultToneTemplates. A nil rng uses the
// process-wide random source.
func NewCatalog(engine *Engine, rng Rand) (*Catalog, error) {
	return NewCatalogFrom(engine, DefaultToneTemplates, rng)
}

// NewCatalogFrom builds a catalog from the given candidate lists. The neutral
// tone must have at least one candidate since it is the fallback.
func NewCatalogFrom(engine *Engine, sources map[domain.Tone][]string, rng Rand) (*Catalog, error) {
	if len(sources[domain.ToneNeutral]) == 0 {
		return nil, fmt.Errorf("catalog: neutral tone needs at least one template")
	}
	if rng == nil {
		rng = globalRand{}
	}
	c := &Catalog{tones: make(map[domain.Tone][]*Template, len(sources)), rng: rng}
	for tone, list := range sources {
		for _, src := range list {
			tpl, err := engine.Compile(src)
			if err != nil {
				return nil, fmt.Errorf("catalog tone %s: %w", tone, err)
			}
			c.tones[tone] = append(c.tones[tone], tpl)
		}
	}
	return c, nil
}

// Candidates returns the template sources used for tone, after the neutral
// fallback is applied.
func (c *Catalog) Candidates(tone domain.Tone) []string {
	list := c.list(tone)
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.Source()
	}
	return out
}

// Render picks a random candidate for tone and fills it from ctx. Unknown
// tones fall back to neutral.
func (c *Catalog) Render(tone domain.Tone, ctx map[string]string) (string, error) {
	list := c.list(tone)
	return list[c.rng.Intn(len(list))].Execute(ctx)
}

func (c *Catalog) list(tone domain.Tone) []*Template {
	if list := c.tones[tone]; len(list) > 0 {
		return list
	}
	return c.tones[domain.ToneNeutral]
}
