package browser

import (
	"context"
	"errors"
	"sync"
)

// Fake is an in-memory Adapter for tests. Pages are keyed by URL; elements
// are keyed by "mode=value".
type Fake struct {
	mu sync.Mutex

	CurrentURL string
	Pages      map[string]*FakePage
	Window     Size

	// Pressed and Scripts record calls in order.
	Pressed []Keys
	Scripts []string
	Visits  []string

	// Redirects maps a visited URL to the URL the browser lands on.
	Redirects map[string]string
	// FindErr, when set, is returned by every Find call.
	FindErr error
	// Down makes Healthy fail.
	Down   bool
	Closed bool
}

// FakePage is a page served by Fake.
type FakePage struct {
	Title    string
	HTML     string
	Elements map[string][]*FakeElement
}

// FakeElement is an element served by Fake.
type FakeElement struct {
	Hidden bool
	HTML   string
	// Err is returned by every interaction.
	Err error
	// Navigate is the URL the browser moves to when the element is used.
	Navigate string

	Values []string
	Clicks int

	fake *Fake
}

// NewFake returns a Fake showing url.
func NewFake(url string) *Fake {
	return &Fake{
		CurrentURL: url,
		Pages:      make(map[string]*FakePage),
		Redirects:  make(map[string]string),
		Window:     Size{Width: 1920, Height: 1080},
	}
}

// Page returns the fake page at url, creating it.
func (f *Fake) Page(url string) *FakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Pages[url]
	if !ok {
		p = &FakePage{Elements: make(map[string][]*FakeElement)}
		f.Pages[url] = p
	}
	return p
}

// Add places an element on the page at url and returns it.
func (f *Fake) Add(url string, mode Mode, value string, el *FakeElement) *FakeElement {
	p := f.Page(url)
	f.mu.Lock()
	defer f.mu.Unlock()
	if el == nil {
		el = &FakeElement{}
	}
	el.fake = f
	key := string(mode) + "=" + value
	p.Elements[key] = append(p.Elements[key], el)
	return el
}

func (f *Fake) Framework() string { return "fake" }

func (f *Fake) Visit(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Visits = append(f.Visits, url)
	if to, ok := f.Redirects[url]; ok {
		url = to
	}
	f.CurrentURL = url
	return nil
}

func (f *Fake) URL(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CurrentURL, nil
}

func (f *Fake) current() *FakePage {
	if p, ok := f.Pages[f.CurrentURL]; ok {
		return p
	}
	return &FakePage{}
}

func (f *Fake) Title(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current().Title, nil
}

func (f *Fake) HTML(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current().HTML, nil
}

func (f *Fake) Find(_ context.Context, mode Mode, value string) ([]Element, error) {
	if _, err := mode.Selector(value); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	found := f.current().Elements[string(mode)+"="+value]
	elements := make([]Element, 0, len(found))
	for _, el := range found {
		elements = append(elements, el)
	}
	return elements, nil
}

func (f *Fake) Press(_ context.Context, keys Keys) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pressed = append(f.Pressed, keys)
	return nil
}

func (f *Fake) Execute(_ context.Context, script string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Scripts = append(f.Scripts, script)
	return nil
}

func (f *Fake) Size(context.Context) (Size, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Window, nil
}

func (f *Fake) Resize(_ context.Context, size Size) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Window = size
	return nil
}

func (f *Fake) Healthy(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down || f.Closed {
		return errors.New("fake browser is down")
	}
	return nil
}

func (f *Fake) Quit(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

func (e *FakeElement) Visible(context.Context) (bool, error) {
	return !e.Hidden, nil
}

func (e *FakeElement) OuterHTML(context.Context) (string, error) {
	return e.HTML, nil
}

func (e *FakeElement) use(value string) error {
	if e.Err != nil {
		return e.Err
	}
	if e.fake != nil {
		e.fake.mu.Lock()
		defer e.fake.mu.Unlock()
		e.Clicks++
		if value != "" {
			e.Values = append(e.Values, value)
		}
		if e.Navigate != "" {
			e.fake.CurrentURL = e.Navigate
		}
	}
	return nil
}

func (e *FakeElement) Click(context.Context) error                  { return e.use("") }
func (e *FakeElement) Fill(_ context.Context, value string) error   { return e.use(value) }
func (e *FakeElement) Select(_ context.Context, value string) error { return e.use(value) }
func (e *FakeElement) Choose(_ context.Context, value string) error { return e.use(value) }
