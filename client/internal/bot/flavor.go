package bot

import "strings"

// Entry is one weighted line of a flavor table.
type Entry struct {
	Text   string
	Weight int
}

// Table is a weighted lookup; Pick is a pure function of the random draw.
type Table []Entry

func (t Table) total() int {
	n := 0
	for _, e := range t {
		n += max(e.Weight, 1)
	}
	return n
}

func (t Table) Pick(rng Rand) string {
	if len(t) == 0 {
		return ""
	}
	n := rng.Intn(t.total())
	for _, e := range t {
		n -= max(e.Weight, 1)
		if n < 0 {
			return e.Text
		}
	}
	return t[len(t)-1].Text
}

// Fill replaces {a} and {b} in a picked line.
func Fill(line, a, b string) string {
	return strings.NewReplacer("{a}", a, "{b}", b).Replace(line)
}

var eightBall = Table{
	{"It is certain.", 3},
	{"Without a doubt.", 2},
	{"Yes, definitely.", 2},
	{"Most likely.", 2},
	{"Signs point to yes.", 2},
	{"Reply hazy, try again.", 1},
	{"Ask again later.", 1},
	{"Cannot predict now.", 1},
	{"Don't count on it.", 2},
	{"My sources say no.", 2},
	{"Very doubtful.", 2},
}

var jokes = Table{
	{"Why do programmers prefer dark mode? Because light attracts bugs.", 2},
	{"I told my computer I needed a break, and it said: no problem, I'll go to sleep.", 1},
	{"Why did the astronaut break up? They needed space.", 2},
	{"There are 10 kinds of people: those who understand binary and those who don't.", 1},
	{"How does the moon cut its hair? Eclipse it.", 1},
	{"Why did the star get in trouble at school? It was too bright for its own good.", 1},
}

var fortunes = Table{
	{"A pleasant surprise is waiting for you.", 2},
	{"Your hard work will soon pay off, probably in coins.", 2},
	{"Someone in this channel admires you quietly.", 1},
	{"Today is a good day to hit on 16.", 1},
	{"Beware of duels offered by strangers.", 1},
	{"The stars align in your favor tonight.", 2},
}

var facts = Table{
	{"A day on Venus is longer than its year.", 1},
	{"Neutron stars can spin 600 times per second.", 1},
	{"There are more stars in the universe than grains of sand on Earth.", 1},
	{"Footprints on the Moon will last for millions of years.", 1},
	{"Jupiter's Great Red Spot is bigger than Earth.", 1},
	{"Octopuses have three hearts.", 1},
}

var compliments = Table{
	{"{a}, you light up this channel like a supernova.", 2},
	{"{a} has impeccable taste in emojis.", 1},
	{"{a}, your messages are the highlight of my uptime.", 1},
	{"{a} is cooler than the cosmic background radiation.", 1},
}

var roasts = Table{
	{"{a}, you're the reason the mute button exists.", 1},
	{"{a} brings everyone so much joy... when they log off.", 1},
	{"{a}'s jokes have the gravitational pull of a pebble.", 1},
	{"{a}, even the bot has better luck at blackjack.", 1},
}

// social actions: {a} is the sender, {b} the target
var socials = map[string]Table{
	"hug":      {{"{a} gives {b} a big warm hug 🤗", 3}, {"{a} wraps {b} in a bear hug 🐻", 1}},
	"pat":      {{"{a} pats {b} on the head 🫳", 2}, {"{a} gives {b} a gentle pat", 1}},
	"slap":     {{"{a} slaps {b} with a large trout 🐟", 3}, {"{a} slaps {b} into next week 👋", 1}},
	"poke":     {{"{a} pokes {b} 👉", 2}, {"{a} pokes {b} repeatedly. Hey. Hey. Hey.", 1}},
	"highfive": {{"{a} high-fives {b} ✋", 2}, {"{a} goes for a high five with {b}... and misses", 1}},
	"dance":    {{"{a} dances with {b} 💃", 2}, {"{a} busts out the moonwalk next to {b} 🕺", 1}},
	"kiss":     {{"{a} blows {b} a kiss 😘", 2}, {"{a} kisses {b} on the cheek 💋", 1}},
}

var rpsMoves = []string{"rock", "paper", "scissors"}
