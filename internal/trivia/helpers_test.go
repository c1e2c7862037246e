package trivia

import (
	"context"
	"math/rand"
	"sync"
)

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

// stubFetcher records the last fetch and serves a canned batch.
type stubFetcher struct {
	mu         sync.Mutex
	batch      Batch
	err        error
	calls      int
	count      int
	difficulty string
}

func (f *stubFetcher) Fetch(_ context.Context, count int, difficulty string) (Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.count = count
	f.difficulty = difficulty
	return f.batch, f.err
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *stubFetcher) lastRequest() (int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.difficulty
}

// fakeGateway is an in-memory pushing gateway. Tests post messages and the
// session wakes up through the Notifier path.
type fakeGateway struct {
	mu      sync.Mutex
	latest  map[string]Message
	waiters map[string][]chan struct{}
	fail    map[string]error
	seq     int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		latest:  make(map[string]Message),
		waiters: make(map[string][]chan struct{}),
		fail:    make(map[string]error),
	}
}

func (g *fakeGateway) LatestMessage(_ context.Context, channelID string) (*Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail[channelID]; err != nil {
		return nil, err
	}
	msg, ok := g.latest[channelID]
	if !ok {
		return nil, nil
	}
	out := msg
	return &out, nil
}

func (g *fakeGateway) Subscribe(channelID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	g.mu.Lock()
	g.waiters[channelID] = append(g.waiters[channelID], ch)
	g.mu.Unlock()

	cancel := func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		list := g.waiters[channelID]
		for i, w := range list {
			if w == ch {
				g.waiters[channelID] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

// post records a new latest message and signals subscribers.
func (g *fakeGateway) post(channelID, authorID, text string) {
	g.mu.Lock()
	g.seq++
	g.latest[channelID] = Message{
		ID:        channelID + "-" + itoa(g.seq),
		ChannelID: channelID,
		AuthorID:  authorID,
		Text:      text,
	}
	waiters := append([]chan struct{}(nil), g.waiters[channelID]...)
	g.mu.Unlock()

	for _, ch := range waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (g *fakeGateway) setFailure(channelID string, err error) {
	g.mu.Lock()
	g.fail[channelID] = err
	g.mu.Unlock()
}

func (g *fakeGateway) subscriberCount(channelID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters[channelID])
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// feedbackCall and summaryCall capture presenter invocations.
type feedbackCall struct {
	channelID     string
	correct       bool
	correctAnswer string
}

type summaryCall struct {
	channelID string
	correct   int
	total     int
}

type questionCall struct {
	channelID string
	question  Question
	choices   []string
}

// recordingPresenter stores every outbound call for assertions.
type recordingPresenter struct {
	mu           sync.Mutex
	intros       []string
	questions    []questionCall
	feedback     []feedbackCall
	summaries    []summaryCall
	apologies    []string
	maintenance  []string
	blocked      []string
	batchErrors  []BatchStatus
	batchErrChan []string
}

func (p *recordingPresenter) ShowIntro(channelID string, _ int, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intros = append(p.intros, channelID)
	return nil
}

func (p *recordingPresenter) ShowQuestion(channelID string, q Question, choices []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.questions = append(p.questions, questionCall{channelID: channelID, question: q, choices: choices})
	return nil
}

func (p *recordingPresenter) ShowFeedback(channelID string, correct bool, correctAnswer string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feedback = append(p.feedback, feedbackCall{channelID: channelID, correct: correct, correctAnswer: correctAnswer})
	return nil
}

func (p *recordingPresenter) ShowSummary(channelID string, correct, total int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, summaryCall{channelID: channelID, correct: correct, total: total})
	return nil
}

func (p *recordingPresenter) ShowApology(channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.apologies = append(p.apologies, channelID)
	return nil
}

func (p *recordingPresenter) ShowMaintenanceWarning(channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maintenance = append(p.maintenance, channelID)
	return nil
}

func (p *recordingPresenter) ShowBlockedWarning(channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocked = append(p.blocked, channelID)
	return nil
}

func (p *recordingPresenter) ShowBatchError(channelID string, status BatchStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batchErrors = append(p.batchErrors, status)
	p.batchErrChan = append(p.batchErrChan, channelID)
	return nil
}

func (p *recordingPresenter) questionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.questions)
}

func (p *recordingPresenter) feedbackCalls() []feedbackCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]feedbackCall(nil), p.feedback...)
}

func (p *recordingPresenter) summaryCalls() []summaryCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]summaryCall(nil), p.summaries...)
}

func (p *recordingPresenter) apologyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.apologies)
}

func (p *recordingPresenter) maintenanceChannels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.maintenance...)
}

func (p *recordingPresenter) batchErrorStatuses() []BatchStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]BatchStatus(nil), p.batchErrors...)
}
