// File: internal/extract/harvest.go
package extract

// HarvestItemsJS is the in-page function that walks the currently rendered
// feed items and produces one RawItem per element. It takes the item CSS
// selector as its argument so the locator configuration stays outside the
// script. Extraction failures of a single item are swallowed; the item is
// simply absent from the result.
const HarvestItemsJS = `(itemSelector, withMarkup) => {
	const items = document.querySelectorAll(itemSelector);
	const results = [];

	items.forEach(el => {
		try {
			const statusLink = el.querySelector('a[href*="/status/"]');
			const id = statusLink?.href?.match(/status\/(\d+)/)?.[1] || '';

			const promoted =
				el.querySelector('[data-testid="placementTracking"]') !== null ||
				Array.from(el.querySelectorAll('span'))
					.some(s => s.textContent === 'Ad' || s.textContent === 'Promoted');

			let authorHandle = '';
			let authorName = '';
			const userNameEl = el.querySelector('[data-testid="User-Name"]');
			if (userNameEl) {
				const handleLink = userNameEl.querySelector('a[href^="/"]');
				if (handleLink) {
					authorHandle = handleLink.getAttribute('href')?.replace('/', '') || '';
				}
				authorName = userNameEl.querySelector('span')?.textContent || '';
			}

			const text = el.querySelector('[data-testid="tweetText"]')?.textContent || '';

			const media = [];
			el.querySelectorAll('[data-testid="tweetPhoto"] img, [data-testid="videoPlayer"] video')
				.forEach(m => {
					const src = m.src || m.poster;
					if (src) media.push(src);
				});

			const timestamp = el.querySelector('time')?.getAttribute('datetime') || '';

			const metric = (testId) => {
				const metricEl = el.querySelector('[data-testid="' + testId + '"]');
				if (!metricEl) return '';
				const ariaLabel = metricEl.getAttribute('aria-label');
				if (ariaLabel) {
					const match = ariaLabel.match(/^([\d,.]+[KkMm]?)/);
					if (match) return match[1];
				}
				return metricEl.textContent?.trim() || '';
			};

			// Impressions render as the text of the analytics link.
			const impressions =
				el.querySelector('a[href*="/analytics"]')?.textContent?.trim() || '';

			results.push({
				id,
				authorHandle,
				authorName,
				text,
				timestamp,
				media,
				likes: metric('like'),
				reshares: metric('retweet'),
				quotes: '',
				replies: metric('reply'),
				impressions,
				bookmarks: metric('bookmark'),
				promoted,
				url: statusLink?.href || '',
				outerHtml: withMarkup ? el.outerHTML : '',
			});
		} catch (e) {
			// Skip items that fail to parse.
		}
	});

	return results;
}`

// HarvestProfileJS reads the profile header of the current page.
const HarvestProfileJS = `() => {
	const header = document.querySelector('[data-testid="UserName"]');
	const handle = Array.from(header?.querySelectorAll('span') || [])
		.map(s => s.textContent || '')
		.find(t => t.startsWith('@')) || '';

	const displayName = header?.querySelector('span')?.textContent || '';
	const bio = document.querySelector('[data-testid="UserDescription"]')?.textContent || '';

	const statValue = (suffix) => {
		const link = document.querySelector('a[href$="' + suffix + '"]');
		return link?.querySelector('span')?.textContent?.trim() || '';
	};

	return {
		handle,
		displayName,
		bio,
		followers: statValue('/verified_followers'),
		following: statValue('/following'),
		url: window.location.href,
	};
}`

// DocumentHeightJS measures the scrollable height of the document.
const DocumentHeightJS = `() => document.body.scrollHeight`
